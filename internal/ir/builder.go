package ir

import (
	"fmt"

	"fortio.org/safecast"

	"rill/internal/source"
	"rill/internal/types"
)

// FuncBuilder assembles a Func statement by statement. Frontends lower their
// AST through it; tests construct scenarios directly.
type FuncBuilder struct {
	fn *Func
}

// NewFuncBuilder starts a function with the given name.
func NewFuncBuilder(name string) *FuncBuilder {
	return &FuncBuilder{fn: &Func{Name: name}}
}

// SetSpan records the declaration span of the function.
func (b *FuncBuilder) SetSpan(sp source.Span) *FuncBuilder {
	b.fn.Span = sp
	return b
}

// Param declares a parameter local with an optional region annotation.
// Parameters must be declared before any plain locals.
func (b *FuncBuilder) Param(name string, t types.TypeID, region string, sp source.Span) LocalID {
	if len(b.fn.Locals) != len(b.fn.Params) {
		panic("ir: parameters must be declared before locals")
	}
	id := b.newLocal(name, t, sp)
	b.fn.Params = append(b.fn.Params, Param{Local: id, Region: region})
	return id
}

// Local declares a plain local.
func (b *FuncBuilder) Local(name string, t types.TypeID, sp source.Span) LocalID {
	return b.newLocal(name, t, sp)
}

func (b *FuncBuilder) newLocal(name string, t types.TypeID, sp source.Span) LocalID {
	n, err := safecast.Conv[int32](len(b.fn.Locals))
	if err != nil {
		panic(fmt.Errorf("local count overflow: %w", err))
	}
	b.fn.Locals = append(b.fn.Locals, Local{Name: name, Type: t, Span: sp})
	return LocalID(n)
}

// SetResult declares the return type and its region annotation.
func (b *FuncBuilder) SetResult(t types.TypeID, region string) *FuncBuilder {
	b.fn.Result = Result{Type: t, Region: region}
	return b
}

// Assign emits dst = src.
func (b *FuncBuilder) Assign(sp source.Span, dst Place, src RValue) {
	b.emit(Stmt{Kind: StmtAssign, Span: sp, Assign: AssignStmt{Dst: dst, Src: src}})
}

// AssignOp emits dst = use(op), the common single-operand form.
func (b *FuncBuilder) AssignOp(sp source.Span, dst Place, op Operand) {
	b.Assign(sp, dst, UseRValue(op))
}

// Call emits a call whose result is discarded.
func (b *FuncBuilder) Call(sp source.Span, callee string, args ...Operand) {
	b.emit(Stmt{Kind: StmtCall, Span: sp, Call: CallStmt{Callee: callee, Args: args}})
}

// CallInto emits dst = callee(args...).
func (b *FuncBuilder) CallInto(sp source.Span, dst Place, callee string, args ...Operand) {
	b.emit(Stmt{Kind: StmtCall, Span: sp, Call: CallStmt{HasDst: true, Dst: dst, Callee: callee, Args: args}})
}

// Drop emits the scope-exit invalidation of a place.
func (b *FuncBuilder) Drop(sp source.Span, place Place) {
	b.emit(Stmt{Kind: StmtDrop, Span: sp, Drop: DropStmt{Place: place}})
}

// Label emits a named join point.
func (b *FuncBuilder) Label(name string) {
	b.emit(Stmt{Kind: StmtLabel, Label: LabelStmt{Name: name}})
}

// Goto emits an unconditional transfer.
func (b *FuncBuilder) Goto(label string) {
	b.emit(Stmt{Kind: StmtGoto, Goto: GotoStmt{Label: label}})
}

// Branch emits a two-way conditional transfer.
func (b *FuncBuilder) Branch(sp source.Span, cond Operand, then, els string) {
	b.emit(Stmt{Kind: StmtBranch, Span: sp, Branch: BranchStmt{Cond: cond, Then: then, Else: els}})
}

// Switch emits a multi-way transfer on an enum discriminant, one case per
// pattern-match arm.
func (b *FuncBuilder) Switch(sp source.Span, value Operand, cases []SwitchCase, def string) {
	b.emit(Stmt{Kind: StmtSwitch, Span: sp, Switch: SwitchStmt{Value: value, Cases: cases, Default: def}})
}

// Return emits a value-less return.
func (b *FuncBuilder) Return(sp source.Span) {
	b.emit(Stmt{Kind: StmtReturn, Span: sp})
}

// ReturnValue emits return <op>.
func (b *FuncBuilder) ReturnValue(sp source.Span, op Operand) {
	b.emit(Stmt{Kind: StmtReturn, Span: sp, Return: ReturnStmt{HasValue: true, Value: op}})
}

// Unreachable emits a point control never reaches.
func (b *FuncBuilder) Unreachable(sp source.Span) {
	b.emit(Stmt{Kind: StmtUnreachable, Span: sp})
}

// Nop emits a no-op carrying only a span.
func (b *FuncBuilder) Nop(sp source.Span) {
	b.emit(Stmt{Kind: StmtNop, Span: sp})
}

func (b *FuncBuilder) emit(s Stmt) {
	b.fn.Body = append(b.fn.Body, s)
}

// Build finalizes and returns the function.
func (b *FuncBuilder) Build() *Func {
	return b.fn
}
