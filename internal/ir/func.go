package ir

import (
	"rill/internal/source"
	"rill/internal/types"
)

// Local is one slot of function-local storage. Parameters occupy the first
// len(Params) slots.
type Local struct {
	Name string
	Type types.TypeID
	Span source.Span
}

// Param binds a parameter local to its optional region annotation.
// An empty Region means the parameter's references (if any) live in a fresh
// universal region private to this signature.
type Param struct {
	Local  LocalID
	Region string
}

// Result describes the declared return type and its region annotation.
type Result struct {
	Type   types.TypeID
	Region string
}

// Func is one function's verification input: an already type-checked,
// desugared body plus its declared signature surface.
type Func struct {
	Name   string
	Span   source.Span
	Params []Param
	Result Result
	Locals []Local
	Body   []Stmt
}

// LocalName returns the display name of a local, "_" when unnamed.
func (f *Func) LocalName(id LocalID) string {
	if id < 0 || int(id) >= len(f.Locals) {
		return "_"
	}
	if name := f.Locals[id].Name; name != "" {
		return name
	}
	return "_"
}

// LocalType returns the declared type of a local.
func (f *Func) LocalType(id LocalID) types.TypeID {
	if id < 0 || int(id) >= len(f.Locals) {
		return types.NoTypeID
	}
	return f.Locals[id].Type
}

// IsParam reports whether the local is a parameter slot.
func (f *Func) IsParam(id LocalID) bool {
	return id >= 0 && int(id) < len(f.Params)
}

// ParamRegion returns the region annotation of a parameter local, "" when
// the local is not a parameter or carries no annotation.
func (f *Func) ParamRegion(id LocalID) string {
	if !f.IsParam(id) {
		return ""
	}
	return f.Params[id].Region
}

// PlaceString renders a place with its local's name, for messages.
func (f *Func) PlaceString(p Place) string {
	return f.LocalName(p.Local) + p.PathString()
}

// Module is a set of functions sharing one type interner and one signature
// table, plus the source paths its spans refer to.
type Module struct {
	Name        string
	SourcePaths []string
	Types       *types.Interner
	Sigs        *SignatureTable
	Funcs       []*Func
}
