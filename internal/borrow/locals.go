package borrow

import (
	"rill/internal/ir"
	"rill/internal/types"
)

// LocalSet is a bitset over a function's locals.
type LocalSet []uint64

func NewLocalSet(n int) LocalSet {
	return make(LocalSet, (n+63)/64)
}

func (s LocalSet) Add(id ir.LocalID) {
	s[id>>6] |= 1 << (uint(id) & 63)
}

func (s LocalSet) Remove(id ir.LocalID) {
	s[id>>6] &^= 1 << (uint(id) & 63)
}

func (s LocalSet) Has(id ir.LocalID) bool {
	if id < 0 {
		return false
	}
	w := int(id >> 6)
	return w < len(s) && s[w]&(1<<(uint(id)&63)) != 0
}

func (s LocalSet) Union(other LocalSet) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

func (s LocalSet) Clone() LocalSet {
	return append(LocalSet(nil), s...)
}

// typeContainsRef reports whether values of the type can carry references,
// directly or inside an aggregate. Loan propagation only follows locals for
// which this holds.
func typeContainsRef(in *types.Interner, id types.TypeID) bool {
	return containsRef(in, id, 0)
}

func containsRef(in *types.Interner, id types.TypeID, depth int) bool {
	// Recursive nominal types bottom out here; a ref would have been seen
	// within a few layers.
	if depth > 8 {
		return true
	}
	t, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case types.KindRef:
		return true
	case types.KindArray:
		return containsRef(in, t.Elem, depth+1)
	case types.KindStruct:
		info, ok := in.StructInfo(id)
		if !ok {
			return false
		}
		for _, f := range info.Fields {
			if containsRef(in, f.Type, depth+1) {
				return true
			}
		}
	case types.KindEnum:
		info, ok := in.EnumInfo(id)
		if !ok {
			return false
		}
		for _, v := range info.Variants {
			for _, p := range v.Payload {
				if containsRef(in, p, depth+1) {
					return true
				}
			}
		}
	case types.KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok {
			return false
		}
		for _, e := range info.Elems {
			if containsRef(in, e, depth+1) {
				return true
			}
		}
	}
	return false
}

// placeType resolves the type a place denotes by walking its projections.
// Returns NoTypeID when the path cannot be resolved; callers fall back to
// conservative behavior.
func placeType(fn *ir.Func, in *types.Interner, p ir.Place) types.TypeID {
	id := fn.LocalType(p.Local)
	for _, step := range p.Proj {
		t, ok := in.Lookup(id)
		if !ok {
			return types.NoTypeID
		}
		switch step.Kind {
		case ir.ProjDeref:
			if t.Kind != types.KindRef {
				return types.NoTypeID
			}
			id = t.Elem
		case ir.ProjIndex:
			if t.Kind != types.KindArray {
				return types.NoTypeID
			}
			id = t.Elem
		case ir.ProjField:
			switch t.Kind {
			case types.KindStruct:
				info, ok := in.StructInfo(id)
				if !ok {
					return types.NoTypeID
				}
				fi := info.FieldIndex(step.FieldName)
				if fi < 0 {
					return types.NoTypeID
				}
				id = info.Fields[fi].Type
			case types.KindTuple:
				info, ok := in.TupleInfo(id)
				if !ok || step.FieldIdx < 0 || step.FieldIdx >= len(info.Elems) {
					return types.NoTypeID
				}
				id = info.Elems[step.FieldIdx]
			default:
				return types.NoTypeID
			}
		}
	}
	return id
}
