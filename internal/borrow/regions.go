package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
	"rill/internal/types"
)

// holdsState maps each local to the set of loans a value stored in it may
// carry. Loans enter through borrow operands and flow through assignments
// and region-linked call results.
type holdsState []loanSet

func newHoldsState(locals, loans int) holdsState {
	st := make(holdsState, locals)
	for i := range st {
		st[i] = newLoanSet(loans)
	}
	return st
}

func (st holdsState) clone() holdsState {
	out := make(holdsState, len(st))
	for i := range st {
		out[i] = st[i].clone()
	}
	return out
}

func (st holdsState) mergeFrom(other holdsState) bool {
	changed := false
	for i := range st {
		if st[i].union(other[i]) {
			changed = true
		}
	}
	return changed
}

// regionSolver computes the region of every loan: the origin point plus
// every point where some holder of the loan is still live. Subset
// constraints from ref flow are solved by the holds fixpoint; liveness then
// bounds each region, which is what keeps borrows non-lexical.
type regionSolver struct {
	g    *cfg.Graph
	fn   *ir.Func
	tin  *types.Interner
	sigs *ir.SignatureTable
	lt   *loanTable
	lv   *liveness

	entries []holdsState
	// carriers marks locals whose type can hold a reference at all; only
	// those participate in loan propagation.
	carriers LocalSet
	// escapes maps loans carried out through a return to the span of that
	// return.
	escapes map[LoanID]source.Span
	// stores are loans handed to the caller by writing through a
	// dereferenced reference parameter.
	stores []paramStore
	// recording gates escape collection to the stable replay.
	recording bool
}

// paramStore is one loan written into caller storage, validated like a
// returned reference.
type paramStore struct {
	loan  LoanID
	param ir.LocalID
	span  source.Span
}

func solveRegions(g *cfg.Graph, fn *ir.Func, tin *types.Interner, sigs *ir.SignatureTable, lt *loanTable, lv *liveness, maxIters int) (*regionSolver, error) {
	rs := &regionSolver{
		g: g, fn: fn, tin: tin, sigs: sigs, lt: lt, lv: lv,
		entries: make([]holdsState, len(g.Blocks)),
		escapes: make(map[LoanID]source.Span),
	}
	nLocals := len(fn.Locals)
	nLoans := len(lt.loans)
	rs.entries[g.Entry] = newHoldsState(nLocals, nLoans)
	rs.carriers = NewLocalSet(nLocals)
	for i := range fn.Locals {
		if typeContainsRef(tin, fn.Locals[i].Type) {
			rs.carriers.Add(ir.LocalID(i)) // #nosec G115 -- local count fits int32
		}
	}

	inList := make([]bool, len(g.Blocks))
	list := append([]cfg.BlockID(nil), g.RPO...)
	for i := range list {
		inList[list[i]] = true
	}
	iters := 0
	var scratch []cfg.BlockID
	for len(list) > 0 {
		iters++
		if iters > maxIters {
			return nil, fmt.Errorf("borrow: region solving did not converge within %d iterations", maxIters)
		}
		b := list[0]
		list = list[1:]
		inList[b] = false
		if rs.entries[b] == nil {
			continue
		}
		out := rs.entries[b].clone()
		rs.transferBlock(b, out)
		scratch = rs.g.Blocks[b].Term.Successors(scratch[:0])
		for _, s := range scratch {
			if rs.entries[s] == nil {
				rs.entries[s] = out.clone()
			} else if !rs.entries[s].mergeFrom(out) {
				continue
			}
			if !inList[s] {
				inList[s] = true
				list = append(list, s)
			}
		}
	}

	rs.expandRegions()
	return rs, nil
}

func (rs *regionSolver) transferBlock(b cfg.BlockID, st holdsState) {
	blk := rs.g.Blocks[b]
	for i := range blk.Stmts {
		rs.transferStmt(&blk.Stmts[i], st)
	}
}

func (rs *regionSolver) transferStmt(s *ir.Stmt, st holdsState) {
	switch s.Kind {
	case ir.StmtAssign:
		gather := newLoanSet(len(rs.lt.loans))
		var scratch [8]*ir.Operand
		for _, op := range s.Assign.Src.Operands(scratch[:0]) {
			rs.operandLoans(op, st, gather)
		}
		rs.writeHolds(s.Assign.Dst, gather, st, s.Span)
	case ir.StmtCall:
		rs.transferCall(s, st)
	case ir.StmtDrop:
		if len(s.Drop.Place.Proj) == 0 && s.Drop.Place.Local >= 0 && int(s.Drop.Place.Local) < len(st) {
			st[s.Drop.Place.Local].clear()
		}
	}
}

// transferCall propagates loans from arguments into the call result. The
// callee is opaque: its signature's region links say which argument regions
// the result may borrow from. A result without a region owns its value and
// carries no loans.
func (rs *regionSolver) transferCall(s *ir.Stmt, st holdsState) {
	if !s.Call.HasDst {
		return
	}
	gather := newLoanSet(len(rs.lt.loans))
	// Validation rejects unknown callees before solving starts, so the
	// lookup cannot fail here.
	if sig, ok := rs.sigs.Lookup(s.Call.Callee); ok && sig.Result.Region != "" {
		for _, i := range sig.ResultParamIndices() {
			if i < len(s.Call.Args) {
				rs.operandLoans(&s.Call.Args[i], st, gather)
			}
		}
	}
	rs.writeHolds(s.Call.Dst, gather, st, s.Span)
}

// operandLoans folds the loans an operand's value may carry into dst.
func (rs *regionSolver) operandLoans(op *ir.Operand, st holdsState, dst loanSet) {
	switch op.Kind {
	case ir.OperandConst:
	case ir.OperandBorrow, ir.OperandBorrowMut:
		if id, ok := rs.lt.loanOf(op); ok {
			dst.add(id)
		}
	default:
		if op.Place.Local >= 0 && int(op.Place.Local) < len(st) {
			dst.union(st[op.Place.Local])
		}
	}
}

// writeHolds installs gathered loans into the destination. Whole-local
// writes replace; projection writes accumulate into the aggregate. A write
// through a dereferenced reference parameter lands in caller storage, so
// the loans it carries must stay valid past this frame.
func (rs *regionSolver) writeHolds(dst ir.Place, gather loanSet, st holdsState, sp source.Span) {
	if dst.Local < 0 || int(dst.Local) >= len(st) {
		return
	}
	if !rs.carriers.Has(dst.Local) {
		return
	}
	if rs.recording && rs.fn.IsParam(dst.Local) && len(dst.Proj) > 0 && dst.Proj[0].Kind == ir.ProjDeref {
		exit := rs.g.ExitPoint()
		gather.forEach(func(id LoanID) {
			rs.lt.loans[id].Region.Add(exit)
			rs.stores = append(rs.stores, paramStore{loan: id, param: dst.Local, span: sp})
		})
	}
	if len(dst.Proj) == 0 {
		copy(st[dst.Local], gather)
		return
	}
	st[dst.Local].union(gather)
}

// expandRegions replays stable holds states and adds every point where a
// holder is live to the held loans' regions. Returns feeding the caller add
// the synthetic exit point, as do stores into caller storage.
func (rs *regionSolver) expandRegions() {
	rs.recording = true
	for _, b := range rs.g.RPO {
		if rs.entries[b] == nil {
			continue
		}
		st := rs.entries[b].clone()
		blk := rs.g.Blocks[b]
		for i := range blk.Stmts {
			rs.markLive(b, i, st)
			rs.transferStmt(&blk.Stmts[i], st)
		}
		ti := len(blk.Stmts)
		rs.markLive(b, ti, st)
		if blk.Term.Kind == cfg.TermReturn && blk.Term.Return.HasValue {
			gather := newLoanSet(len(rs.lt.loans))
			rs.operandLoans(&blk.Term.Return.Value, st, gather)
			exit := rs.g.ExitPoint()
			sp := blk.Term.Span
			gather.forEach(func(id LoanID) {
				rs.lt.loans[id].Region.Add(exit)
				if _, seen := rs.escapes[id]; !seen {
					rs.escapes[id] = sp
				}
			})
		}
	}
}

func (rs *regionSolver) markLive(b cfg.BlockID, idx int, st holdsState) {
	live := rs.lv.liveAt(b, idx)
	if live == nil {
		return
	}
	p := rs.g.PointOf(b, idx)
	for l := range st {
		if !live.Has(ir.LocalID(l)) || st[l].empty() { // #nosec G115 -- local count fits int32
			continue
		}
		st[l].forEach(func(id LoanID) {
			rs.lt.loans[id].Region.Add(p)
		})
	}
}

// invalidates reports whether dropping place d ends the storage a loan of
// place p points into. A deref step past the dropped prefix means the loan
// targets some other owner's storage and survives the drop.
func invalidates(d, p ir.Place) bool {
	if Relate(d, p) == RelDisjoint {
		return false
	}
	for i := len(d.Proj); i < len(p.Proj); i++ {
		if p.Proj[i].Kind == ir.ProjDeref {
			return false
		}
	}
	return true
}

// checkDangling reports loans whose referent storage ends inside their
// region: an explicit drop while the loan is still needed, or a reference
// to function-local storage escaping through a return.
func (rs *regionSolver) checkDangling(rep diag.Reporter) {
	for _, b := range rs.g.RPO {
		blk := rs.g.Blocks[b]
		for i := range blk.Stmts {
			s := &blk.Stmts[i]
			if s.Kind != ir.StmtDrop {
				continue
			}
			p := rs.g.PointOf(b, i)
			for _, loan := range rs.lt.loans {
				if p == loan.Origin || !loan.Region.Has(p) {
					continue
				}
				if !invalidates(s.Drop.Place, loan.Place) {
					continue
				}
				diag.ReportError(rep, diag.OwnDanglingReference, s.Span,
					fmt.Sprintf("`%s` dropped while a %s borrow of it is still live",
						rs.fn.PlaceString(s.Drop.Place), loan.Kind)).
					WithNote(loan.Span, fmt.Sprintf("borrow of `%s` created here", rs.fn.PlaceString(loan.Place))).
					Emit()
			}
		}
	}

	for _, loan := range rs.lt.loans {
		sp, escaped := rs.escapes[loan.ID]
		if !escaped {
			continue
		}
		rs.checkEscape(rep, loan, sp)
	}

	for _, ps := range rs.stores {
		rs.checkParamStore(rep, ps)
	}
}

// checkEscape validates one loan that leaves through a return. Borrows of
// caller storage (reached through a reference parameter) are fine when the
// declared regions line up; everything rooted in this frame dangles.
func (rs *regionSolver) checkEscape(rep diag.Reporter, loan *Loan, retSpan source.Span) {
	root := loan.Place.Local
	callerStorage := rs.fn.IsParam(root) &&
		len(loan.Place.Proj) > 0 && loan.Place.Proj[0].Kind == ir.ProjDeref
	if !callerStorage {
		diag.ReportError(rep, diag.OwnDanglingReference, retSpan,
			fmt.Sprintf("returning a reference to `%s`, which does not outlive the function",
				rs.fn.PlaceString(loan.Place))).
			WithNote(loan.Span, "borrow created here").
			WithNote(rs.fn.Locals[root].Span, fmt.Sprintf("`%s` is local to this function", rs.fn.LocalName(root))).
			Emit()
		return
	}

	// Region annotations: the parameter's region must outlive the declared
	// result region.
	paramRegion := rs.fn.ParamRegion(root)
	resultRegion := rs.fn.Result.Region
	if resultRegion == "" || paramRegion == resultRegion {
		return
	}
	if sig, ok := rs.sigs.Lookup(rs.fn.Name); ok {
		for _, pair := range sig.Outlives {
			if pair.Longer == paramRegion && pair.Shorter == resultRegion {
				return
			}
		}
	}
	diag.ReportError(rep, diag.OwnDanglingReference, retSpan,
		fmt.Sprintf("returned reference borrows from region `%s`, which is not declared to outlive result region `%s`",
			paramRegion, resultRegion)).
		WithNote(loan.Span, "borrow created here").
		Emit()
}

// checkParamStore validates one loan written into caller storage through a
// dereferenced reference parameter. The caller keeps the reference after
// this frame ends, so the rules match checkEscape: borrows of caller
// storage with agreeing declared regions pass, anything rooted in this
// frame dangles.
func (rs *regionSolver) checkParamStore(rep diag.Reporter, ps paramStore) {
	loan := rs.lt.loans[ps.loan]
	root := loan.Place.Local
	callerStorage := rs.fn.IsParam(root) &&
		len(loan.Place.Proj) > 0 && loan.Place.Proj[0].Kind == ir.ProjDeref
	if !callerStorage {
		diag.ReportError(rep, diag.OwnDanglingReference, ps.span,
			fmt.Sprintf("storing a reference to `%s` into `%s`, which outlives the function",
				rs.fn.PlaceString(loan.Place), rs.fn.LocalName(ps.param))).
			WithNote(loan.Span, "borrow created here").
			WithNote(rs.fn.Locals[root].Span, fmt.Sprintf("`%s` is local to this function", rs.fn.LocalName(root))).
			Emit()
		return
	}

	srcRegion := rs.fn.ParamRegion(root)
	dstRegion := rs.fn.ParamRegion(ps.param)
	if dstRegion == "" || srcRegion == dstRegion {
		return
	}
	if sig, ok := rs.sigs.Lookup(rs.fn.Name); ok {
		for _, pair := range sig.Outlives {
			if pair.Longer == srcRegion && pair.Shorter == dstRegion {
				return
			}
		}
	}
	diag.ReportError(rep, diag.OwnDanglingReference, ps.span,
		fmt.Sprintf("stored reference borrows from region `%s`, which is not declared to outlive `%s`'s region `%s`",
			srcRegion, rs.fn.LocalName(ps.param), dstRegion)).
		WithNote(loan.Span, "borrow created here").
		Emit()
}
