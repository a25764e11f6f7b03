package ir

import "rill/internal/types"

// SigParam is one parameter slot of an already-solved callee signature.
type SigParam struct {
	Type   types.TypeID
	Region string
}

// SigResult is the callee's declared result shape. A non-empty Region names
// one of the parameter regions the returned reference is derived from; the
// caller links the corresponding argument loans to the call destination.
type SigResult struct {
	Type   types.TypeID
	Region string
}

// RegionPair records one solved "Longer outlives Shorter" fact.
type RegionPair struct {
	Longer  string
	Shorter string
}

// Signature is the interprocedural boundary: everything the verifier may
// know about a call target. Callee bodies are never inlined into the
// caller's analysis.
type Signature struct {
	Name     string
	Params   []SigParam
	Result   SigResult
	Outlives []RegionPair
}

// ResultParamIndices returns the parameter positions whose region feeds the
// result region, directly or through an outlives fact.
func (s *Signature) ResultParamIndices() []int {
	if s.Result.Region == "" {
		return nil
	}
	feeds := map[string]bool{s.Result.Region: true}
	// Outlives facts are already solved by the callee's own verification,
	// one propagation sweep is enough for the transitive closure recorded
	// there.
	for changed := true; changed; {
		changed = false
		for _, pair := range s.Outlives {
			if feeds[pair.Shorter] && !feeds[pair.Longer] {
				feeds[pair.Longer] = true
				changed = true
			}
		}
	}
	var out []int
	for i, p := range s.Params {
		if p.Region != "" && feeds[p.Region] {
			out = append(out, i)
		}
	}
	return out
}

// SignatureTable is the immutable, externally-owned snapshot of callee
// shapes shared by all verification tasks. It is never mutated during
// checking.
type SignatureTable struct {
	byName map[string]*Signature
}

// NewSignatureTable builds a table from a list of signatures.
func NewSignatureTable(sigs []Signature) *SignatureTable {
	t := &SignatureTable{byName: make(map[string]*Signature, len(sigs))}
	for i := range sigs {
		t.byName[sigs[i].Name] = &sigs[i]
	}
	return t
}

// Lookup returns the signature for a call target.
func (t *SignatureTable) Lookup(name string) (*Signature, bool) {
	if t == nil {
		return nil, false
	}
	sig, ok := t.byName[name]
	return sig, ok
}

// Names returns all registered callee names (unordered).
func (t *SignatureTable) Names() []string {
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	return out
}

// All returns the stored signatures (unordered).
func (t *SignatureTable) All() []Signature {
	out := make([]Signature, 0, len(t.byName))
	for _, sig := range t.byName {
		out = append(out, *sig)
	}
	return out
}
