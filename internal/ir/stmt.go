package ir

import "rill/internal/source"

// StmtKind enumerates the desugared statement forms a function body is made
// of. Loops, `for`, and pattern matches arrive reduced to labels, gotos,
// branches and switches.
type StmtKind uint8

const (
	StmtNop StmtKind = iota
	// StmtAssign stores an rvalue into a place.
	StmtAssign
	// StmtCall invokes a named function; the callee body is opaque, only its
	// signature participates in checking.
	StmtCall
	// StmtDrop ends a local's storage at scope exit. The frontend emits it;
	// the verifier uses it to bound referent validity windows.
	StmtDrop
	// StmtLabel names a join point for gotos and branches.
	StmtLabel
	// StmtGoto transfers control to a label.
	StmtGoto
	// StmtBranch transfers to one of two labels on a boolean operand.
	StmtBranch
	// StmtSwitch transfers to the arm matching an enum discriminant.
	StmtSwitch
	// StmtReturn leaves the function, optionally yielding a value.
	StmtReturn
	// StmtUnreachable marks a point control can never reach.
	StmtUnreachable
)

// Stmt is one desugared statement.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Assign AssignStmt
	Call   CallStmt
	Drop   DropStmt
	Label  LabelStmt
	Goto   GotoStmt
	Branch BranchStmt
	Switch SwitchStmt
	Return ReturnStmt
}

type AssignStmt struct {
	Dst Place
	Src RValue
}

type CallStmt struct {
	HasDst bool
	Dst    Place
	Callee string
	Args   []Operand
}

type DropStmt struct {
	Place Place
}

type LabelStmt struct {
	Name string
}

type GotoStmt struct {
	Label string
}

type BranchStmt struct {
	Cond Operand
	Then string
	Else string
}

// SwitchCase routes one enum tag to a label. Each pattern-match arm becomes
// one case so initialization state merges per arm at the join label.
type SwitchCase struct {
	Tag   string
	Label string
}

type SwitchStmt struct {
	Value   Operand
	Cases   []SwitchCase
	Default string
}

type ReturnStmt struct {
	HasValue bool
	Value    Operand
}

// Terminates reports whether the statement ends a basic block.
func (s *Stmt) Terminates() bool {
	switch s.Kind {
	case StmtGoto, StmtBranch, StmtSwitch, StmtReturn, StmtUnreachable:
		return true
	}
	return false
}
