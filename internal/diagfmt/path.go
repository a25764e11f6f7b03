package diagfmt

import (
	"path/filepath"

	"rill/internal/source"
)

// formatPath renders a file's path according to mode. Virtual files keep
// their given name untouched.
func formatPath(f *source.File, fs *source.FileSet, mode PathMode) string {
	if f.Flags&source.FileVirtual != 0 {
		return f.Path
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return abs
		}
	case PathModeBasename:
		return filepath.Base(f.Path)
	case PathModeRelative, PathModeAuto:
		if rel, err := filepath.Rel(fs.BaseDir(), f.Path); err == nil && !filepath.IsAbs(rel) {
			return rel
		}
	}
	return f.Path
}
