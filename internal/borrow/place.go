package borrow

import (
	"strings"

	"rill/internal/ir"
)

// Relation classifies how two places' storage may relate.
type Relation uint8

const (
	// RelDisjoint means the places can never alias.
	RelDisjoint Relation = iota
	// RelEqual means the places may denote the same storage. Index
	// projections are never proven distinct, so a[i] and a[j] relate equal.
	RelEqual
	// RelContains means the first place covers the second (proper prefix).
	RelContains
	// RelContained means the second place covers the first.
	RelContained
)

// Relate compares two places structurally. Anything other than RelDisjoint
// is a potential overlap: a conflict check must treat it as aliasing.
func Relate(a, b ir.Place) Relation {
	if a.Local != b.Local {
		return RelDisjoint
	}
	n := len(a.Proj)
	if len(b.Proj) < n {
		n = len(b.Proj)
	}
	for i := 0; i < n; i++ {
		pa, pb := a.Proj[i], b.Proj[i]
		if pa.Kind != pb.Kind {
			// Typed IR never mixes step kinds at one depth; if it happens,
			// assume overlap rather than miss a conflict.
			return RelEqual
		}
		if pa.Kind == ir.ProjField && pa.FieldName != pb.FieldName {
			return RelDisjoint
		}
		// Deref and index steps are possibly equal; keep walking.
	}
	switch {
	case len(a.Proj) == len(b.Proj):
		return RelEqual
	case len(a.Proj) < len(b.Proj):
		return RelContains
	default:
		return RelContained
	}
}

// Overlaps reports whether two places may alias.
func Overlaps(a, b ir.Place) bool {
	return Relate(a, b) != RelDisjoint
}

// pathKey renders the projection path of a place for map keys. Index steps
// collapse to one key so possibly-equal elements collide deliberately.
func pathKey(p ir.Place) string {
	return p.PathString()
}

// pathsOverlap reports whether two path keys of the same root may alias:
// one must be a segment-boundary prefix of the other.
func pathsOverlap(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if !strings.HasPrefix(b, a) {
		return false
	}
	return len(a) == len(b) || b[len(a)] == '.' || b[len(a)] == '['
}
