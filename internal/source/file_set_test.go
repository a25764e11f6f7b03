package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSpanCover(t *testing.T) {
	a := Span{File: 0, Start: 10, End: 20}
	b := Span{File: 0, Start: 5, End: 15}
	got := a.Cover(b)
	if got.Start != 5 || got.End != 20 {
		t.Errorf("Cover = %v", got)
	}
	other := Span{File: 1, Start: 0, End: 100}
	if a.Cover(other) != a {
		t.Error("spans from different files must not merge")
	}
}

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("demo.rl", []byte("let a = 1\nlet b = 2\nuse b\n"))

	cases := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{Line: 1, Col: 1}},
		{4, LineCol{Line: 1, Col: 5}},
		{10, LineCol{Line: 2, Col: 1}},
		{20, LineCol{Line: 3, Col: 1}},
	}
	for _, tc := range cases {
		start, _ := fs.Resolve(Span{File: id, Start: tc.off, End: tc.off + 1})
		if start != tc.want {
			t.Errorf("Resolve(%d) = %+v, want %+v", tc.off, start, tc.want)
		}
	}
}

func TestFileLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("demo.rl", []byte("first\nsecond\nthird"))
	f := fs.Get(id)
	for num, want := range map[uint32]string{1: "first", 2: "second", 3: "third"} {
		if got := f.Line(num); got != want {
			t.Errorf("Line(%d) = %q, want %q", num, got, want)
		}
	}
	if f.Line(0) != "" || f.Line(9) != "" {
		t.Error("out-of-range lines should be empty")
	}
}

func TestLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crlf.rl")
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a\r\nb\r\n")...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a\nb\n" {
		t.Errorf("content = %q, want normalized newlines without BOM", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Errorf("flags = %v, want BOM and CRLF markers", f.Flags)
	}
}

func TestLookupTracksLatest(t *testing.T) {
	fs := NewFileSet()
	fs.AddVirtual("x.rl", []byte("old"))
	latest := fs.AddVirtual("x.rl", []byte("new"))
	id, ok := fs.Lookup("x.rl")
	if !ok || id != latest {
		t.Errorf("Lookup = %v/%v, want latest id %v", id, ok, latest)
	}
}
