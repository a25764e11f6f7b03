package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
	"rill/internal/types"
)

// accessKind classifies how a statement touches a place.
type accessKind uint8

const (
	accRead accessKind = iota
	accWrite
	accMove
	accBorrowShared
	accBorrowMut
)

// access is one place touch at a program point. loan is set for the two
// borrow kinds and names the loan the access itself creates.
type access struct {
	kind  accessKind
	place ir.Place
	span  source.Span
	loan  LoanID
}

// conflictPass checks every access against the loans live at its point.
// Drops are left to the dangling pass: ending storage under a live loan is
// a lifetime error, not an aliasing one.
type conflictPass struct {
	rs  *regionSolver
	rep diag.Reporter
}

func checkConflicts(rs *regionSolver, rep diag.Reporter) {
	cp := &conflictPass{rs: rs, rep: rep}
	g := rs.g
	var accs []access
	for _, b := range g.RPO {
		if rs.entries[b] == nil {
			continue
		}
		st := rs.entries[b].clone()
		blk := g.Blocks[b]
		for i := range blk.Stmts {
			s := &blk.Stmts[i]
			accs = cp.stmtAccesses(s, accs[:0])
			cp.checkPoint(g.PointOf(b, i), accs, st)
			rs.transferStmt(s, st)
		}
		if op := blk.Term.Operand(); op != nil {
			accs = cp.operandAccess(op, blk.Term.Span, accs[:0])
			cp.checkPoint(g.TermPoint(b), accs, st)
		}
	}
}

func (cp *conflictPass) stmtAccesses(s *ir.Stmt, dst []access) []access {
	switch s.Kind {
	case ir.StmtAssign:
		var scratch [8]*ir.Operand
		for _, op := range s.Assign.Src.Operands(scratch[:0]) {
			dst = cp.operandAccess(op, s.Span, dst)
		}
		dst = append(dst, access{kind: accWrite, place: s.Assign.Dst, span: s.Span})
	case ir.StmtCall:
		for i := range s.Call.Args {
			dst = cp.operandAccess(&s.Call.Args[i], s.Span, dst)
		}
		if s.Call.HasDst {
			dst = append(dst, access{kind: accWrite, place: s.Call.Dst, span: s.Span})
		}
	}
	return dst
}

func (cp *conflictPass) operandAccess(op *ir.Operand, sp source.Span, dst []access) []access {
	switch op.Kind {
	case ir.OperandConst:
	case ir.OperandCopy:
		dst = append(dst, access{kind: accRead, place: op.Place, span: sp})
	case ir.OperandMove:
		kind := accMove
		if t := placeType(cp.rs.fn, cp.rs.tin, op.Place); t != types.NoTypeID && cp.rs.tin.Duplicable(t) {
			kind = accRead
		}
		dst = append(dst, access{kind: kind, place: op.Place, span: sp})
	case ir.OperandBorrow, ir.OperandBorrowMut:
		kind := accBorrowShared
		if op.Kind == ir.OperandBorrowMut {
			kind = accBorrowMut
		}
		id, ok := cp.rs.lt.loanOf(op)
		if !ok {
			id = -1
		}
		dst = append(dst, access{kind: kind, place: op.Place, span: sp, loan: id})
	}
	return dst
}

// expandedPlace is one storage location an access may touch. via names the
// loan the access reaches that storage through, -1 for direct accesses.
type expandedPlace struct {
	place ir.Place
	via   LoanID
}

// checkPoint tests each access at point p against every loan live there.
// An access through a reference is first expanded to the places of the
// loans the reference may hold, so writes through one borrow collide with
// other borrows of the same storage. The loan an access goes through is
// exempt: using a borrow is not a conflict with itself.
func (cp *conflictPass) checkPoint(p cfg.Point, accs []access, st holdsState) {
	for i := range accs {
		a := &accs[i]
		places := cp.expand(a.place, st)
		for _, loan := range cp.rs.lt.loans {
			if !loan.Region.Has(p) {
				continue
			}
			if a.kind == accBorrowShared || a.kind == accBorrowMut {
				if a.loan == loan.ID {
					continue
				}
			}
			for _, pl := range places {
				if pl.via == loan.ID || !Overlaps(pl.place, loan.Place) {
					continue
				}
				cp.reportConflict(a, loan)
				break
			}
		}
	}
}

// expand resolves an access place that goes through a reference into the
// storage the reference may point at. Accesses not crossing a deref come
// back unchanged.
func (cp *conflictPass) expand(p ir.Place, st holdsState) []expandedPlace {
	derefAt := -1
	for i, step := range p.Proj {
		if step.Kind == ir.ProjDeref {
			derefAt = i
			break
		}
	}
	if derefAt < 0 {
		return []expandedPlace{{place: p, via: -1}}
	}
	if p.Local < 0 || int(p.Local) >= len(st) {
		return nil
	}
	suffix := p.Proj[derefAt+1:]
	var out []expandedPlace
	st[p.Local].forEach(func(id LoanID) {
		held := cp.rs.lt.loans[id].Place
		proj := make([]ir.Proj, 0, len(held.Proj)+len(suffix))
		proj = append(proj, held.Proj...)
		proj = append(proj, suffix...)
		out = append(out, expandedPlace{place: ir.Place{Local: held.Local, Proj: proj}, via: id})
	})
	return out
}

func (cp *conflictPass) reportConflict(a *access, loan *Loan) {
	fn := cp.rs.fn
	loanName := fn.PlaceString(loan.Place)
	note := fmt.Sprintf("%s borrow of `%s` created here", loan.Kind, loanName)
	switch a.kind {
	case accRead:
		// Reading under a shared loan is the whole point of sharing.
		if loan.Kind == LoanShared {
			return
		}
		diag.ReportError(cp.rep, diag.OwnUseWhileBorrowed, a.span,
			fmt.Sprintf("cannot use `%s` while it is exclusively borrowed", fn.PlaceString(a.place))).
			WithNote(loan.Span, note).
			Emit()
	case accWrite:
		diag.ReportError(cp.rep, diag.OwnUseWhileBorrowed, a.span,
			fmt.Sprintf("cannot assign to `%s` while it is borrowed", fn.PlaceString(a.place))).
			WithNote(loan.Span, note).
			Emit()
	case accMove:
		diag.ReportError(cp.rep, diag.OwnUseWhileBorrowed, a.span,
			fmt.Sprintf("cannot move out of `%s` while it is borrowed", fn.PlaceString(a.place))).
			WithNote(loan.Span, note).
			Emit()
	case accBorrowShared:
		if loan.Kind == LoanShared {
			return
		}
		diag.ReportError(cp.rep, diag.OwnConflictingBorrow, a.span,
			fmt.Sprintf("cannot borrow `%s` as shared while it is exclusively borrowed", fn.PlaceString(a.place))).
			WithNote(loan.Span, note).
			Emit()
	case accBorrowMut:
		diag.ReportError(cp.rep, diag.OwnConflictingBorrow, a.span,
			fmt.Sprintf("cannot borrow `%s` as exclusive while it is already borrowed", fn.PlaceString(a.place))).
			WithNote(loan.Span, note).
			Emit()
	}
}
