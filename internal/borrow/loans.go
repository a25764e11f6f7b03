package borrow

import (
	"math/bits"

	"rill/internal/cfg"
	"rill/internal/ir"
	"rill/internal/source"
)

// LoanID indexes a function's loan table.
type LoanID int32

// LoanKind distinguishes shared from exclusive loans.
type LoanKind uint8

const (
	LoanShared LoanKind = iota
	LoanExclusive
)

func (k LoanKind) String() string {
	if k == LoanExclusive {
		return "exclusive"
	}
	return "shared"
}

// Loan is one borrow: the place it aliases, where it was created, and the
// region of points it must stay valid for. Region starts as just the origin
// and grows during solving.
type Loan struct {
	ID     LoanID
	Kind   LoanKind
	Place  ir.Place
	Origin cfg.Point
	Span   source.Span
	Region cfg.PointSet
}

// loanSet is a bitset over a function's loans.
type loanSet []uint64

func newLoanSet(n int) loanSet {
	return make(loanSet, (n+63)/64)
}

func (s loanSet) add(id LoanID) {
	s[id>>6] |= 1 << (uint(id) & 63)
}

func (s loanSet) has(id LoanID) bool {
	w := int(id >> 6)
	return w < len(s) && s[w]&(1<<(uint(id)&63)) != 0
}

func (s loanSet) union(other loanSet) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

func (s loanSet) clear() {
	for i := range s {
		s[i] = 0
	}
}

func (s loanSet) empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s loanSet) clone() loanSet {
	return append(loanSet(nil), s...)
}

// forEach calls fn for every loan in the set, in id order.
func (s loanSet) forEach(fn func(LoanID)) {
	for wi, w := range s {
		for ; w != 0; w &= w - 1 {
			fn(LoanID(wi*64 + bits.TrailingZeros64(w))) // #nosec G115 -- loan count fits int32
		}
	}
}

// loanTable holds every loan a function creates, in deterministic program
// order, plus a reverse index from the borrow operand that creates it.
type loanTable struct {
	loans     []*Loan
	byOperand map[*ir.Operand]LoanID
}

// collectLoans scans reachable blocks for borrow operands. Each occurrence
// is one loan; a borrow inside a loop is still a single loan whose region
// covers the loop.
func collectLoans(g *cfg.Graph) *loanTable {
	lt := &loanTable{byOperand: make(map[*ir.Operand]LoanID)}
	addFrom := func(op *ir.Operand, p cfg.Point, sp source.Span) {
		if !op.IsBorrow() {
			return
		}
		kind := LoanShared
		if op.Kind == ir.OperandBorrowMut {
			kind = LoanExclusive
		}
		id := LoanID(len(lt.loans)) // #nosec G115 -- loan count fits int32
		region := cfg.NewPointSet(g.NumPoints())
		region.Add(p)
		lt.loans = append(lt.loans, &Loan{
			ID: id, Kind: kind, Place: op.Place,
			Origin: p, Span: sp, Region: region,
		})
		lt.byOperand[op] = id
	}

	var scratch [8]*ir.Operand
	for _, b := range g.RPO {
		blk := g.Blocks[b]
		for i := range blk.Stmts {
			s := &blk.Stmts[i]
			p := g.PointOf(b, i)
			switch s.Kind {
			case ir.StmtAssign:
				for _, op := range s.Assign.Src.Operands(scratch[:0]) {
					addFrom(op, p, s.Span)
				}
			case ir.StmtCall:
				for j := range s.Call.Args {
					addFrom(&s.Call.Args[j], p, s.Span)
				}
			}
		}
		if op := blk.Term.Operand(); op != nil {
			addFrom(op, g.TermPoint(b), blk.Term.Span)
		}
	}
	return lt
}

// loanOf returns the loan a borrow operand creates, false when the operand
// sits in unreachable code.
func (lt *loanTable) loanOf(op *ir.Operand) (LoanID, bool) {
	id, ok := lt.byOperand[op]
	return id, ok
}
