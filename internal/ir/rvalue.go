package ir

import "rill/internal/types"

// RValueKind distinguishes right-hand value shapes.
type RValueKind uint8

const (
	// RValueUse forwards a single operand.
	RValueUse RValueKind = iota
	// RValueUnary applies a unary operator.
	RValueUnary
	// RValueBinary applies a binary operator.
	RValueBinary
	// RValueStructLit constructs a struct from field operands.
	RValueStructLit
	// RValueArrayLit constructs an array from element operands.
	RValueArrayLit
	// RValueTupleLit constructs a tuple from element operands.
	RValueTupleLit
	// RValueTagTest reads an enum discriminant.
	RValueTagTest
	// RValueTagPayload projects one payload slot out of a matched variant.
	RValueTagPayload
)

// UnaryOpKind enumerates unary operators. The verifier does not evaluate
// them; they exist so IR stays printable and round-trippable.
type UnaryOpKind uint8

const (
	UnaryNeg UnaryOpKind = iota
	UnaryNot
)

// BinaryOpKind enumerates binary operators.
type BinaryOpKind uint8

const (
	BinaryAdd BinaryOpKind = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryEq
	BinaryNe
	BinaryLt
	BinaryLe
	BinaryGt
	BinaryGe
	BinaryAnd
	BinaryOr
)

// RValue is the right-hand side of an assignment.
type RValue struct {
	Kind RValueKind

	Use        Operand
	Unary      UnaryOp
	Binary     BinaryOp
	StructLit  StructLit
	ArrayLit   ArrayLit
	TupleLit   TupleLit
	TagTest    TagTest
	TagPayload TagPayload
}

type UnaryOp struct {
	Op      UnaryOpKind
	Operand Operand
}

type BinaryOp struct {
	Op    BinaryOpKind
	Left  Operand
	Right Operand
}

type StructLitField struct {
	Name  string
	Value Operand
}

type StructLit struct {
	Type   types.TypeID
	Fields []StructLitField
}

type ArrayLit struct {
	Elems []Operand
}

type TupleLit struct {
	Elems []Operand
}

// TagTest reads the discriminant of an enum value without consuming it.
type TagTest struct {
	Value   Operand
	TagName string
}

// TagPayload moves or copies one payload slot out of the matched variant.
// The move tracker treats it as a read of the payload sub-place only, so a
// match arm consumes just the bindings it actually binds.
type TagPayload struct {
	Value   Operand
	TagName string
	Index   int
}

// UseRValue wraps a single operand.
func UseRValue(op Operand) RValue {
	return RValue{Kind: RValueUse, Use: op}
}

// Operands appends every operand the rvalue consumes to dst and returns it.
func (rv *RValue) Operands(dst []*Operand) []*Operand {
	switch rv.Kind {
	case RValueUse:
		dst = append(dst, &rv.Use)
	case RValueUnary:
		dst = append(dst, &rv.Unary.Operand)
	case RValueBinary:
		dst = append(dst, &rv.Binary.Left, &rv.Binary.Right)
	case RValueStructLit:
		for i := range rv.StructLit.Fields {
			dst = append(dst, &rv.StructLit.Fields[i].Value)
		}
	case RValueArrayLit:
		for i := range rv.ArrayLit.Elems {
			dst = append(dst, &rv.ArrayLit.Elems[i])
		}
	case RValueTupleLit:
		for i := range rv.TupleLit.Elems {
			dst = append(dst, &rv.TupleLit.Elems[i])
		}
	case RValueTagTest:
		dst = append(dst, &rv.TagTest.Value)
	case RValueTagPayload:
		dst = append(dst, &rv.TagPayload.Value)
	}
	return dst
}
