package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for primitive types every function references.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Bool    TypeID
	Int     TypeID
	Uint    TypeID
	Float   TypeID
	String  TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Nominal types (structs, enums) are registered once and identified by their
// side-table slot, so two structs with identical fields stay distinct.
type Interner struct {
	types      []Type
	index      map[typeKey]TypeID
	builtins   Builtins
	structs    []StructInfo
	enums      []EnumInfo
	tuples     []TupleInfo
	fns        []FnInfo
	duplicable map[TypeID]bool
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Mutable bool
	Count   uint32
	Payload uint32
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:      make(map[typeKey]TypeID, 64),
		duplicable: make(map[TypeID]bool),
	}
	in.structs = append(in.structs, StructInfo{}) // slot 0 reserved
	in.enums = append(in.enums, EnumInfo{})
	in.tuples = append(in.tuples, TupleInfo{})
	in.fns = append(in.fns, FnInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Int = in.Intern(Type{Kind: KindInt})
	in.builtins.Uint = in.Intern(Type{Kind: KindUint})
	in.builtins.Float = in.Intern(Type{Kind: KindFloat})
	in.builtins.String = in.Intern(Type{Kind: KindString})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey{t.Kind, t.Elem, t.Mutable, t.Count, t.Payload}
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[typeKey{t.Kind, t.Elem, t.Mutable, t.Count, t.Payload}] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Ref interns a reference type. Exclusive references are never duplicable;
// shared ones always are.
func (in *Interner) Ref(elem TypeID, mutable bool) TypeID {
	return in.Intern(Type{Kind: KindRef, Elem: elem, Mutable: mutable})
}

// Array interns a fixed-size array type.
func (in *Interner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// NewStruct registers a nominal struct and returns its TypeID.
func (in *Interner) NewStruct(name string, fields []Field) TypeID {
	slot, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name, Fields: fields})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// NewEnum registers a tagged union and returns its TypeID.
func (in *Interner) NewEnum(name string, variants []Variant) TypeID {
	slot, err := safecast.Conv[uint32](len(in.enums))
	if err != nil {
		panic(fmt.Errorf("len(enums) overflow: %w", err))
	}
	in.enums = append(in.enums, EnumInfo{Name: name, Variants: variants})
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// Tuple interns a positional tuple type.
func (in *Interner) Tuple(elems []TypeID) TypeID {
	slot, err := safecast.Conv[uint32](len(in.tuples))
	if err != nil {
		panic(fmt.Errorf("len(tuples) overflow: %w", err))
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: elems})
	return in.internRaw(Type{Kind: KindTuple, Payload: slot})
}

// Fn interns a function value type.
func (in *Interner) Fn(params []TypeID, result TypeID) TypeID {
	slot, err := safecast.Conv[uint32](len(in.fns))
	if err != nil {
		panic(fmt.Errorf("len(fns) overflow: %w", err))
	}
	in.fns = append(in.fns, FnInfo{Params: params, Result: result})
	return in.internRaw(Type{Kind: KindFn, Payload: slot})
}

// StructInfo returns field metadata for a struct TypeID.
func (in *Interner) StructInfo(id TypeID) (StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct || int(tt.Payload) >= len(in.structs) {
		return StructInfo{}, false
	}
	return in.structs[tt.Payload], true
}

// EnumInfo returns variant metadata for an enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (EnumInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum || int(tt.Payload) >= len(in.enums) {
		return EnumInfo{}, false
	}
	return in.enums[tt.Payload], true
}

// TupleInfo returns element metadata for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
		return TupleInfo{}, false
	}
	return in.tuples[tt.Payload], true
}

// MarkDuplicable records the upstream "trivially copyable" fact for a nominal
// type. Scalars and shared references need no marking.
func (in *Interner) MarkDuplicable(id TypeID) {
	in.duplicable[id] = true
}

// Duplicable reports whether values of the type copy instead of move.
func (in *Interner) Duplicable(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindUnit, KindBool, KindInt, KindUint, KindFloat, KindFn:
		return true
	case KindRef:
		return !tt.Mutable
	case KindArray:
		return in.Duplicable(tt.Elem)
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok {
			return false
		}
		for _, elem := range info.Elems {
			if !in.Duplicable(elem) {
				return false
			}
		}
		return true
	case KindStruct, KindEnum:
		return in.duplicable[id]
	}
	// Strings own heap storage, so they move.
	return false
}
