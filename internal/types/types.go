package types

// TypeID is a stable handle into the Interner.
type TypeID uint32

// NoTypeID marks an absent or invalid type.
const NoTypeID TypeID = 0

// Kind enumerates the structural shapes the verifier distinguishes.
// Value types richer than this (generics, aliases) are resolved away by the
// upstream type checker before IR reaches the verifier.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindRef
	KindStruct
	KindEnum
	KindArray
	KindTuple
	KindFn
)

// Type is a structural descriptor. Composite payloads (struct fields, enum
// variants, tuple elems) live in side tables indexed by Payload.
type Type struct {
	Kind    Kind
	Elem    TypeID // ref / array element
	Mutable bool   // exclusive reference
	Count   uint32 // array length when statically known
	Payload uint32 // side-table index for struct/enum/tuple/fn
}

// Field is one named struct field.
type Field struct {
	Name string
	Type TypeID
}

// StructInfo describes a nominal struct.
type StructInfo struct {
	Name   string
	Fields []Field
}

// FieldIndex returns the index of the named field, or -1.
func (si StructInfo) FieldIndex(name string) int {
	for i := range si.Fields {
		if si.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Variant is one enum arm: a tag plus its payload layout.
type Variant struct {
	Name    string
	Payload []TypeID
}

// EnumInfo describes a tagged union.
type EnumInfo struct {
	Name     string
	Variants []Variant
}

// Variant returns the named variant, or nil.
func (ei EnumInfo) Variant(name string) *Variant {
	for i := range ei.Variants {
		if ei.Variants[i].Name == name {
			return &ei.Variants[i]
		}
	}
	return nil
}

// TupleInfo describes a positional tuple.
type TupleInfo struct {
	Elems []TypeID
}

// FnInfo describes a function value's shape.
type FnInfo struct {
	Params []TypeID
	Result TypeID
}
