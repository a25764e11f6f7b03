package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"rill/internal/diag"
	"rill/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.FgBlue)
	caretColor   = color.New(color.FgGreen, color.Bold)
)

// Pretty formats diagnostics for humans. It walks bag.Items() (callers are
// expected to Sort() first) and prints, per diagnostic:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//	    <source line>
//	    ^~~~
//
// followed by notes in the same shape.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		writeHeading(w, fs, d, opts)
		writeSnippet(w, fs, d.Primary, opts)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			label := "note"
			if opts.Color {
				label = noteColor.Sprint(label)
			}
			fmt.Fprintf(w, "  %s: %s\n", label, n.Msg)
			if !n.Span.Empty() || n.Span.File != 0 {
				fmt.Fprintf(w, "    at %s\n", locString(fs, n.Span, opts))
				writeSnippet(w, fs, n.Span, opts)
			}
		}
	}
}

func writeHeading(w io.Writer, fs *source.FileSet, d diag.Diagnostic, opts PrettyOpts) {
	sev := d.Severity.String()
	code := d.Code.ID()
	if opts.Color {
		switch d.Severity {
		case diag.SevError:
			sev = errorColor.Sprint(sev)
			code = errorColor.Sprint(code)
		case diag.SevWarning:
			sev = warningColor.Sprint(sev)
			code = warningColor.Sprint(code)
		default:
			sev = infoColor.Sprint(sev)
			code = infoColor.Sprint(code)
		}
	}
	fmt.Fprintf(w, "%s: %s %s: %s\n", locString(fs, d.Primary, opts), sev, code, d.Message)
}

func locString(fs *source.FileSet, sp source.Span, opts PrettyOpts) string {
	f := fs.Get(sp.File)
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, fs, opts.PathMode), start.Line, start.Col)
}

// writeSnippet prints the source line under the span with a caret underline.
// Widths are measured after NFC normalization so combining sequences line up
// with what most terminals render.
func writeSnippet(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts) {
	f := fs.Get(sp.File)
	if len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(sp)
	line := f.Line(start.Line)
	if line == "" {
		return
	}
	line = norm.NFC.String(line)
	fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(line, "\t", " "))

	prefixCols := 0
	if start.Col > 1 {
		prefix := line
		if int(start.Col-1) <= len(line) {
			prefix = line[:start.Col-1]
		}
		prefixCols = runewidth.StringWidth(strings.ReplaceAll(prefix, "\t", " "))
	}
	spanLen := 1
	if end.Line == start.Line && end.Col > start.Col {
		seg := line
		if int(end.Col-1) <= len(line) && int(start.Col-1) <= len(line) {
			seg = line[start.Col-1 : end.Col-1]
		}
		if n := runewidth.StringWidth(norm.NFC.String(seg)); n > 0 {
			spanLen = n
		}
	}
	marker := "^"
	if spanLen > 1 {
		marker += strings.Repeat("~", spanLen-1)
	}
	if opts.Color {
		marker = caretColor.Sprint(marker)
	}
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", prefixCols), marker)
}
