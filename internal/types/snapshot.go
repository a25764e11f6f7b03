package types

import "sort"

// Snapshot is the serializable form of an Interner, used by the module file
// format and the verification result cache. IDs are preserved exactly.
type Snapshot struct {
	Types      []Type
	Structs    []StructInfo
	Enums      []EnumInfo
	Tuples     []TupleInfo
	Fns        []FnInfo
	Duplicable []TypeID
}

// Snapshot exports the interner's full state.
func (in *Interner) Snapshot() Snapshot {
	dup := make([]TypeID, 0, len(in.duplicable))
	for id, ok := range in.duplicable {
		if ok {
			dup = append(dup, id)
		}
	}
	sort.Slice(dup, func(i, j int) bool { return dup[i] < dup[j] })
	return Snapshot{
		Types:      append([]Type(nil), in.types...),
		Structs:    append([]StructInfo(nil), in.structs...),
		Enums:      append([]EnumInfo(nil), in.enums...),
		Tuples:     append([]TupleInfo(nil), in.tuples...),
		Fns:        append([]FnInfo(nil), in.fns...),
		Duplicable: dup,
	}
}

// FromSnapshot reconstructs an interner with identical TypeIDs.
func FromSnapshot(s Snapshot) *Interner {
	in := &Interner{
		index:      make(map[typeKey]TypeID, len(s.Types)),
		duplicable: make(map[TypeID]bool, len(s.Duplicable)),
		types:      append([]Type(nil), s.Types...),
		structs:    append([]StructInfo(nil), s.Structs...),
		enums:      append([]EnumInfo(nil), s.Enums...),
		tuples:     append([]TupleInfo(nil), s.Tuples...),
		fns:        append([]FnInfo(nil), s.Fns...),
	}
	for i, t := range in.types {
		in.index[typeKey{t.Kind, t.Elem, t.Mutable, t.Count, t.Payload}] = TypeID(i) // #nosec G115 -- bounded by snapshot size
	}
	for _, id := range s.Duplicable {
		in.duplicable[id] = true
	}
	// Builtins were interned in a fixed order; recover their IDs.
	in.builtins = Builtins{
		Invalid: in.Intern(Type{Kind: KindInvalid}),
		Unit:    in.Intern(Type{Kind: KindUnit}),
		Bool:    in.Intern(Type{Kind: KindBool}),
		Int:     in.Intern(Type{Kind: KindInt}),
		Uint:    in.Intern(Type{Kind: KindUint}),
		Float:   in.Intern(Type{Kind: KindFloat}),
		String:  in.Intern(Type{Kind: KindString}),
	}
	return in
}
