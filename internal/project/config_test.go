package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rillck.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[check]
jobs = 2
warnings_as_errors = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Check.Jobs != 2 {
		t.Errorf("jobs = %d, want 2", cfg.Check.Jobs)
	}
	if !cfg.Check.WarningsAsErrors {
		t.Error("warnings_as_errors not applied")
	}
	// Unset keys keep their defaults.
	if cfg.Check.MaxDiagnostics != 128 || cfg.Check.SolverMaxIters != 10000 {
		t.Errorf("defaults lost: %+v", cfg.Check)
	}
	if cfg.Check.Color != "auto" || !cfg.Check.Cache {
		t.Errorf("defaults lost: %+v", cfg.Check)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[check]
jbos = 2
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an unknown key error")
	}
}

func TestLoadConfigValidates(t *testing.T) {
	for name, content := range map[string]string{
		"negative jobs": "[check]\njobs = -1\n",
		"bad color":     "[check]\ncolor = \"sometimes\"\n",
		"zero cap":      "[check]\nmax_diagnostics = 0\n",
	} {
		path := writeConfig(t, t.TempDir(), content)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func TestFindRillTomlWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[check]\njobs = 1\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	path, ok, err := FindRillToml(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected to find the config above the nested dir")
	}
	if filepath.Dir(path) != root {
		t.Errorf("found %s, want it in %s", path, root)
	}
}

func TestLoadConfigFromMissingFile(t *testing.T) {
	cfg, path, err := LoadConfigFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("unexpected config path %q", path)
	}
	if cfg != DefaultConfig() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}
