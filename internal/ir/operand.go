package ir

import "rill/internal/types"

// OperandKind distinguishes how a statement consumes a value.
type OperandKind uint8

const (
	// OperandConst is a literal value.
	OperandConst OperandKind = iota
	// OperandCopy reads a place without transferring ownership. Only valid
	// for duplication-exempt types; the verifier enforces this.
	OperandCopy
	// OperandMove reads a place by value, transferring ownership out of it.
	OperandMove
	// OperandBorrow creates a shared loan of a place.
	OperandBorrow
	// OperandBorrowMut creates an exclusive loan of a place.
	OperandBorrowMut
)

// Operand is a leaf value consumed by statements and rvalues.
type Operand struct {
	Kind  OperandKind
	Type  types.TypeID
	Const Const
	Place Place
}

// IsBorrow reports whether evaluating the operand creates a loan.
func (op Operand) IsBorrow() bool {
	return op.Kind == OperandBorrow || op.Kind == OperandBorrowMut
}

// ConstKind distinguishes literal kinds.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstUint
	ConstFloat
	ConstBool
	ConstString
	ConstUnit
)

// Const is a literal.
type Const struct {
	Kind        ConstKind
	IntValue    int64
	UintValue   uint64
	FloatValue  float64
	BoolValue   bool
	StringValue string
}

// Copy builds a copying read of place.
func Copy(place Place) Operand {
	return Operand{Kind: OperandCopy, Place: place}
}

// Move builds an ownership-transferring read of place.
func Move(place Place) Operand {
	return Operand{Kind: OperandMove, Place: place}
}

// Borrow builds a shared borrow of place.
func Borrow(place Place) Operand {
	return Operand{Kind: OperandBorrow, Place: place}
}

// BorrowMut builds an exclusive borrow of place.
func BorrowMut(place Place) Operand {
	return Operand{Kind: OperandBorrowMut, Place: place}
}

// IntConst builds an integer literal operand.
func IntConst(v int64) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstInt, IntValue: v}}
}

// BoolConst builds a boolean literal operand.
func BoolConst(v bool) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstBool, BoolValue: v}}
}

// StringConst builds a string literal operand.
func StringConst(v string) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstString, StringValue: v}}
}

// UnitConst builds the unit literal operand.
func UnitConst() Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstUnit}}
}
