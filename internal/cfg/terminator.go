package cfg

import (
	"rill/internal/ir"
	"rill/internal/source"
)

// TermKind enumerates block terminators.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermIf
	TermSwitch
	TermReturn
	TermUnreachable
)

// Terminator transfers control out of a block. Switch edges stay tagged with
// the pattern arm taken so initialization state merges per arm at the join.
type Terminator struct {
	Kind TermKind
	Span source.Span

	Goto   GotoTerm
	If     IfTerm
	Switch SwitchTerm
	Return ReturnTerm
}

type GotoTerm struct {
	Target BlockID
	label  string
}

type IfTerm struct {
	Cond ir.Operand
	Then BlockID
	Else BlockID

	thenLabel string
	elseLabel string
}

type SwitchCase struct {
	Tag    string
	Target BlockID
	label  string
}

type SwitchTerm struct {
	Value   ir.Operand
	Cases   []SwitchCase
	Default BlockID

	defaultLabel string
}

type ReturnTerm struct {
	HasValue bool
	Value    ir.Operand
}

// Successors appends every successor block to dst and returns it.
func (t *Terminator) Successors(dst []BlockID) []BlockID {
	switch t.Kind {
	case TermGoto:
		dst = append(dst, t.Goto.Target)
	case TermIf:
		dst = append(dst, t.If.Then, t.If.Else)
	case TermSwitch:
		for _, c := range t.Switch.Cases {
			dst = append(dst, c.Target)
		}
		if t.Switch.Default != NoBlockID {
			dst = append(dst, t.Switch.Default)
		}
	}
	// Return and unreachable are terminal.
	return dst
}

// Operand returns the value the terminator consumes, if any.
func (t *Terminator) Operand() *ir.Operand {
	switch t.Kind {
	case TermIf:
		return &t.If.Cond
	case TermSwitch:
		return &t.Switch.Value
	case TermReturn:
		if t.Return.HasValue {
			return &t.Return.Value
		}
	}
	return nil
}
