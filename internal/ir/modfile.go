package ir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"rill/internal/types"
)

// rirSchemaVersion guards the module file layout; bump when the payload
// shape changes so stale files are rejected instead of misread.
const rirSchemaVersion uint16 = 1

// FileExt is the extension of serialized module files the frontend hands to
// the verifier.
const FileExt = ".rir"

// modulePayload is the on-disk shape of a Module. The type interner and
// signature table travel as flat snapshots so TypeIDs survive the round
// trip unchanged.
type modulePayload struct {
	Schema      uint16
	Name        string
	SourcePaths []string
	Types       types.Snapshot
	Sigs        []Signature
	Funcs       []*Func
}

// EncodeModule writes the module to w in msgpack form.
func EncodeModule(w io.Writer, m *Module) error {
	if m == nil {
		return fmt.Errorf("ir: nil module")
	}
	payload := modulePayload{
		Schema:      rirSchemaVersion,
		Name:        m.Name,
		SourcePaths: m.SourcePaths,
		Funcs:       m.Funcs,
	}
	if m.Types != nil {
		payload.Types = m.Types.Snapshot()
	}
	if m.Sigs != nil {
		payload.Sigs = m.Sigs.All()
	}
	return msgpack.NewEncoder(w).Encode(&payload)
}

// DecodeModule reads a module from r.
func DecodeModule(r io.Reader) (*Module, error) {
	var payload modulePayload
	if err := msgpack.NewDecoder(r).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Schema != rirSchemaVersion {
		return nil, fmt.Errorf("ir: module file schema %d, want %d", payload.Schema, rirSchemaVersion)
	}
	return &Module{
		Name:        payload.Name,
		SourcePaths: payload.SourcePaths,
		Types:       types.FromSnapshot(payload.Types),
		Sigs:        NewSignatureTable(payload.Sigs),
		Funcs:       payload.Funcs,
	}, nil
}

// WriteModuleFile atomically writes the module to path.
func WriteModuleFile(path string, m *Module) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*"+FileExt)
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := EncodeModule(f, m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadModuleFile loads a module from path.
func ReadModuleFile(path string) (*Module, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the caller
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeModule(f)
}
