package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the project-level rillck.toml. Every field has a sensible
// default; the file is optional and flags override it.
type Config struct {
	Check CheckConfig `toml:"check"`
}

// CheckConfig tunes verification.
type CheckConfig struct {
	// Jobs is the number of functions verified concurrently; 0 means one
	// per CPU.
	Jobs int `toml:"jobs"`
	// MaxDiagnostics caps the diagnostics collected per function.
	MaxDiagnostics int `toml:"max_diagnostics"`
	// SolverMaxIters bounds the fixpoint loops of the dataflow passes.
	SolverMaxIters int `toml:"solver_max_iters"`
	// WarningsAsErrors makes advisory warnings fail the batch.
	WarningsAsErrors bool `toml:"warnings_as_errors"`
	// Color selects colored output: "auto", "always" or "never".
	Color string `toml:"color"`
	// Cache enables the on-disk verification result cache.
	Cache bool `toml:"cache"`
}

// DefaultConfig returns the configuration used when no rillck.toml exists.
func DefaultConfig() Config {
	return Config{
		Check: CheckConfig{
			Jobs:           0,
			MaxDiagnostics: 128,
			SolverMaxIters: 10000,
			Color:          "auto",
			Cache:          true,
		},
	}
}

// FindRillToml walks up from startDir to locate rillck.toml.
func FindRillToml(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "rillck.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadConfig reads a rillck.toml, layering it over the defaults. Unset keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		return cfg, fmt.Errorf("%s: unknown key %q", path, und[0].String())
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFrom finds and loads the nearest rillck.toml above startDir.
// Missing file is not an error: the defaults come back.
func LoadConfigFrom(startDir string) (Config, string, error) {
	path, ok, err := FindRillToml(startDir)
	if err != nil {
		return DefaultConfig(), "", err
	}
	if !ok {
		return DefaultConfig(), "", nil
	}
	cfg, err := LoadConfig(path)
	return cfg, path, err
}

func (c Config) validate() error {
	if c.Check.Jobs < 0 {
		return errors.New("check.jobs must be >= 0")
	}
	if c.Check.MaxDiagnostics <= 0 {
		return errors.New("check.max_diagnostics must be > 0")
	}
	if c.Check.SolverMaxIters <= 0 {
		return errors.New("check.solver_max_iters must be > 0")
	}
	switch c.Check.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("check.color must be auto, always or never, got %q", c.Check.Color)
	}
	return nil
}
