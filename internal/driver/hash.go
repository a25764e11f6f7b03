package driver

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"rill/internal/ir"
	"rill/internal/project"
	"rill/internal/types"
)

// moduleEnvHash digests the parts of a module every function's verdict
// depends on besides its own body: the type table and the signature table.
// Signatures are hashed sorted by name so map order never leaks in.
func moduleEnvHash(m *ir.Module) (project.Digest, error) {
	var env struct {
		Schema uint16
		Types  types.Snapshot
		Sigs   []ir.Signature
	}
	env.Schema = cacheSchemaVersion
	if m.Types != nil {
		env.Types = m.Types.Snapshot()
	}
	if m.Sigs != nil {
		sigs := m.Sigs.All()
		sortSignatures(sigs)
		env.Sigs = sigs
	}
	raw, err := msgpack.Marshal(&env)
	if err != nil {
		return project.Digest{}, err
	}
	return project.HashBytes(raw), nil
}

func sortSignatures(sigs []ir.Signature) {
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })
}

// funcHash digests one function body and combines it with the module
// environment digest into the cache key.
func funcHash(f *ir.Func, env project.Digest) (project.Digest, error) {
	raw, err := msgpack.Marshal(f)
	if err != nil {
		return project.Digest{}, err
	}
	return project.Combine(project.HashBytes(raw), env), nil
}
