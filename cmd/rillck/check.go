package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"rill/internal/diag"
	"rill/internal/diagfmt"
	"rill/internal/driver"
	"rill/internal/ir"
	"rill/internal/observ"
	"rill/internal/project"
	"rill/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <module.rir|directory>",
	Short: "Verify ownership and borrows in a compiled IR module",
	Long:  `Verify move, initialization and borrow discipline in one .rir module file or every .rir file under a directory`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=config)")
	checkCmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	checkCmd.Flags().Bool("no-warnings", false, "ignore warnings in diagnostics")
	checkCmd.Flags().Bool("with-notes", true, "include diagnostic notes in output")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().Bool("no-cache", false, "disable the on-disk verdict cache")
	checkCmd.Flags().Bool("no-ui", false, "disable the interactive progress view")
}

// listRIRFiles returns the sorted list of .rir files under a path.
func listRIRFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ir.FileExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	noWarnings, err := cmd.Flags().GetBool("no-warnings")
	if err != nil {
		return fmt.Errorf("failed to get no-warnings flag: %w", err)
	}
	if noWarnings && warningsAsErrors {
		return fmt.Errorf("no-warnings and warnings-as-errors flags cannot be used together")
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	noUI, err := cmd.Flags().GetBool("no-ui")
	if err != nil {
		return fmt.Errorf("failed to get no-ui flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}

	// Config file sits next to (or above) the checked path; flags override.
	cfg, _, err := project.LoadConfigFrom(filepath.Dir(args[0]))
	if err != nil {
		return err
	}
	if jobs == 0 {
		jobs = cfg.Check.Jobs
	}
	if maxDiagnostics == 0 {
		maxDiagnostics = cfg.Check.MaxDiagnostics
	}
	if colorFlag == "" {
		colorFlag = cfg.Check.Color
	}
	if !warningsAsErrors {
		warningsAsErrors = cfg.Check.WarningsAsErrors
	}
	useColor := false
	switch colorFlag {
	case "always":
		useColor = true
	case "never":
	case "auto", "":
		useColor = isTerminal(os.Stdout)
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, always or never)", colorFlag)
	}

	files, err := listRIRFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "no %s files under %s\n", ir.FileExt, args[0])
		}
		return nil
	}

	var cache *driver.DiskCache
	if cfg.Check.Cache && !noCache {
		if c, err := driver.OpenDiskCache("rillck"); err == nil {
			cache = c
		}
	}

	timer := observ.NewTimer()
	exitCode := 0
	for _, path := range files {
		mod, err := ir.ReadModuleFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fileSet := buildFileSet(mod, path)

		opts := driver.Options{
			Jobs:           jobs,
			MaxDiagnostics: maxDiagnostics,
			SolverMaxIters: cfg.Check.SolverMaxIters,
			Cache:          cache,
		}
		if showTimings {
			opts.Timer = timer
		}

		var res *driver.ModuleResult
		interactive := format == "pretty" && !noUI && !quiet && isTerminal(os.Stdout) && len(mod.Funcs) > 1
		if interactive {
			res, err = verifyWithUI(cmd.Context(), mod, opts)
		} else {
			res, err = driver.VerifyModule(cmd.Context(), mod, opts)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		bag := res.Bag
		if noWarnings {
			bag = dropWarnings(bag)
		}

		pathMode := diagfmt.PathModeAuto
		if fullPath {
			pathMode = diagfmt.PathModeAbsolute
		}
		switch format {
		case "json":
			err = diagfmt.JSON(cmd.OutOrStdout(), bag, fileSet, diagfmt.JSONOpts{
				IncludePositions: true,
				PathMode:         pathMode,
				IncludeNotes:     withNotes,
			})
			if err != nil {
				return err
			}
		default:
			diagfmt.Pretty(cmd.OutOrStdout(), bag, fileSet, diagfmt.PrettyOpts{
				Color:     useColor,
				PathMode:  pathMode,
				ShowNotes: withNotes,
			})
			if !quiet {
				printVerdict(cmd.OutOrStdout(), path, res)
			}
		}

		if !res.Accepted || (warningsAsErrors && bag.HasWarnings()) {
			exitCode = 1
		}
	}

	if showTimings && !quiet {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// buildFileSet loads the module's source files in declaration order so span
// FileIDs keep pointing at the right entries. Files that moved since the
// module was compiled become empty virtual entries: locations still print,
// snippets just go missing.
func buildFileSet(mod *ir.Module, modPath string) *source.FileSet {
	fileSet := source.NewFileSetWithBase(filepath.Dir(modPath))
	for _, p := range mod.SourcePaths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(filepath.Dir(modPath), p)
		}
		if _, err := fileSet.Load(full); err != nil {
			fileSet.AddVirtual(p, nil)
		}
	}
	if len(mod.SourcePaths) == 0 {
		fileSet.AddVirtual(modPath, nil)
	}
	return fileSet
}

func dropWarnings(bag *diag.Bag) *diag.Bag {
	out := diag.NewBag(bag.Cap())
	for _, d := range bag.Items() {
		if d.Severity >= diag.SevError {
			out.Add(d)
		}
	}
	return out
}

func printVerdict(w io.Writer, path string, res *driver.ModuleResult) {
	rejected := 0
	cached := 0
	for i := range res.Funcs {
		if !res.Funcs[i].Accepted {
			rejected++
		}
		if res.Funcs[i].Cached {
			cached++
		}
	}
	verdict := "ok"
	if !res.Accepted {
		verdict = "rejected"
	}
	fmt.Fprintf(w, "%s: %s (%d functions, %d rejected, %d cached)\n",
		path, verdict, len(res.Funcs), rejected, cached)
}
