package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"rill/internal/diag"
	"rill/internal/source"
)

func testBag() (*diag.Bag, *source.FileSet) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("demo.rl", []byte("let s = own()\nlet d = move s\nuse s\n"))

	bag := diag.NewBag(8)
	bag.Add(diag.NewError(diag.OwnUseAfterMove, source.Span{File: id, Start: 33, End: 34},
		"use of moved value `s`").
		WithNote(source.Span{File: id, Start: 14, End: 28}, "value `s` moved here"))
	return bag, fs
}

func TestPrettyOutput(t *testing.T) {
	bag, fs := testBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Color: false, PathMode: PathModeBasename, ShowNotes: true})

	out := buf.String()
	for _, want := range []string{
		"demo.rl:3:5: ERROR OWN3001: use of moved value `s`",
		"use s",
		"  ^",
		"note: value `s` moved here",
		"demo.rl:2:1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("pretty output missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyHidesNotes(t *testing.T) {
	bag, fs := testBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "note:") {
		t.Error("notes rendered despite ShowNotes=false")
	}
}

func TestJSONOutput(t *testing.T) {
	bag, fs := testBag()
	var buf bytes.Buffer
	err := JSON(&buf, bag, fs, JSONOpts{
		IncludePositions: true,
		PathMode:         PathModeBasename,
		IncludeNotes:     true,
	})
	if err != nil {
		t.Fatal(err)
	}

	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || len(out.Diagnostics) != 1 {
		t.Fatalf("count = %d, diagnostics = %d", out.Count, len(out.Diagnostics))
	}
	d := out.Diagnostics[0]
	if d.Code != "OWN3001" || d.Severity != "ERROR" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Location.File != "demo.rl" || d.Location.StartLine != 3 {
		t.Errorf("location = %+v", d.Location)
	}
	if len(d.Notes) != 1 || d.Notes[0].Location.StartLine != 2 {
		t.Errorf("notes = %+v", d.Notes)
	}
}

func TestJSONTruncation(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("x.rl", []byte("a\nb\nc\n"))
	bag := diag.NewBag(8)
	for i := uint32(0); i < 4; i++ {
		bag.Add(diag.NewError(diag.OwnUseAfterMove, source.Span{File: id, Start: i, End: i + 1}, "m"))
	}
	out := BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 2})
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Errorf("truncation failed: count=%d len=%d", out.Count, len(out.Diagnostics))
	}
}
