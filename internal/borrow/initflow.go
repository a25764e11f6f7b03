package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/source"
	"rill/internal/types"
)

// initKind orders initialization facts worst-last so merging two paths can
// take the maximum.
type initKind uint8

const (
	stInit initKind = iota
	// stPartial: fully initialized except the sub-paths listed in parts.
	stPartial
	// stMoved: ownership left on at least one incoming path.
	stMoved
	// stUninit: never initialized, or storage already ended.
	stUninit
)

// localState is the per-local lattice value of the move tracker.
type localState struct {
	kind    initKind
	span    source.Span            // move or drop site, for notes
	dropped bool                   // stUninit because of an explicit drop
	parts   map[string]source.Span // moved-out sub-paths while stPartial
}

func (s localState) clone() localState {
	if s.parts != nil {
		parts := make(map[string]source.Span, len(s.parts))
		for k, v := range s.parts {
			parts[k] = v
		}
		s.parts = parts
	}
	return s
}

// merge folds other into s along a join point. All paths must initialize:
// the worse fact wins, and partial move-out sets union.
func (s *localState) merge(other localState) bool {
	if other.kind > s.kind {
		*s = other.clone()
		return true
	}
	if other.kind < s.kind {
		return false
	}
	if s.kind != stPartial {
		return false
	}
	changed := false
	for k, v := range other.parts {
		if _, ok := s.parts[k]; !ok {
			if s.parts == nil {
				s.parts = make(map[string]source.Span)
			}
			s.parts[k] = v
			changed = true
		}
	}
	return changed
}

type initState []localState

func (st initState) clone() initState {
	out := make(initState, len(st))
	for i := range st {
		out[i] = st[i].clone()
	}
	return out
}

func (st initState) mergeFrom(other initState) bool {
	changed := false
	for i := range st {
		if st[i].merge(other[i]) {
			changed = true
		}
	}
	return changed
}

// initFlow runs the move and initialization tracker over a function's CFG.
// The fixpoint phase computes per-block entry states; the report phase
// replays reachable blocks once and emits use-after-move and
// use-of-uninitialized diagnostics at the offending reads.
type initFlow struct {
	g   *cfg.Graph
	fn  *ir.Func
	tin *types.Interner

	entries []initState
	rep     diag.Reporter
}

func runInitFlow(g *cfg.Graph, fn *ir.Func, tin *types.Interner, maxIters int) (*initFlow, error) {
	f := &initFlow{g: g, fn: fn, tin: tin, rep: diag.NopReporter{}}
	f.entries = make([]initState, len(g.Blocks))

	entry := make(initState, len(fn.Locals))
	for i := range fn.Locals {
		if i < len(fn.Params) {
			entry[i] = localState{kind: stInit}
		} else {
			entry[i] = localState{kind: stUninit}
		}
	}
	f.entries[g.Entry] = entry

	// Worklist over RPO. Loop bodies re-run until entry states stop growing.
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
			return nil, fmt.Errorf("borrow: init flow did not converge within %d iterations", maxIters)
		}
		b := list[0]
		list = list[1:]
		inList[b] = false
		if f.entries[b] == nil {
			continue
		}
		out := f.entries[b].clone()
		f.transferBlock(b, out)
		scratch = f.g.Blocks[b].Term.Successors(scratch[:0])
		for _, s := range scratch {
			if f.entries[s] == nil {
				f.entries[s] = out.clone()
			} else if !f.entries[s].mergeFrom(out) {
				continue
			}
			if !inList[s] {
				inList[s] = true
				list = append(list, s)
			}
		}
	}
	return f, nil
}

// report replays every reachable block once against its stable entry state.
func (f *initFlow) report(rep diag.Reporter) {
	f.rep = rep
	for _, b := range f.g.RPO {
		if f.entries[b] == nil {
			continue
		}
		st := f.entries[b].clone()
		f.transferBlock(b, st)
	}
	f.rep = diag.NopReporter{}
}

func (f *initFlow) transferBlock(b cfg.BlockID, st initState) {
	blk := f.g.Blocks[b]
	for i := range blk.Stmts {
		f.transferStmt(&blk.Stmts[i], st)
	}
	if op := blk.Term.Operand(); op != nil {
		f.useOperand(op, blk.Term.Span, st)
	}
}

func (f *initFlow) transferStmt(s *ir.Stmt, st initState) {
	switch s.Kind {
	case ir.StmtAssign:
		var scratch [8]*ir.Operand
		for _, op := range s.Assign.Src.Operands(scratch[:0]) {
			f.useOperand(op, s.Span, st)
		}
		f.write(s.Assign.Dst, s.Span, st)
	case ir.StmtCall:
		for i := range s.Call.Args {
			f.useOperand(&s.Call.Args[i], s.Span, st)
		}
		if s.Call.HasDst {
			f.write(s.Call.Dst, s.Span, st)
		}
	case ir.StmtDrop:
		f.drop(s.Drop.Place, s.Span, st)
	}
}

// useOperand applies one operand's read. Moves of non-exempt values kill the
// place; copies of non-exempt values are treated as moves, which is how the
// duplication rule is enforced.
func (f *initFlow) useOperand(op *ir.Operand, sp source.Span, st initState) {
	switch op.Kind {
	case ir.OperandConst:
		return
	case ir.OperandBorrow, ir.OperandBorrowMut:
		f.read(op.Place, sp, st)
		return
	}
	f.read(op.Place, sp, st)
	t := placeType(f.fn, f.tin, op.Place)
	if t != types.NoTypeID && f.tin.Duplicable(t) {
		return
	}
	f.move(op.Place, sp, st)
}

// read checks that the place is fully initialized.
func (f *initFlow) read(p ir.Place, sp source.Span, st initState) {
	if p.Local < 0 || int(p.Local) >= len(st) {
		return
	}
	s := &st[p.Local]
	name := f.fn.PlaceString(p)
	switch s.kind {
	case stUninit:
		b := diag.ReportError(f.rep, diag.OwnUseOfUninit, sp,
			fmt.Sprintf("use of uninitialized value `%s`", name))
		if s.dropped {
			b.WithNote(s.span, fmt.Sprintf("storage of `%s` ended here", f.fn.LocalName(p.Local)))
		}
		b.Emit()
	case stMoved:
		diag.ReportError(f.rep, diag.OwnUseAfterMove, sp,
			fmt.Sprintf("use of moved value `%s`", name)).
			WithNote(s.span, fmt.Sprintf("value `%s` moved here", f.fn.LocalName(p.Local))).
			Emit()
	case stPartial:
		key := pathKey(p)
		for part, moveSp := range s.parts {
			if pathsOverlap(key, part) {
				diag.ReportError(f.rep, diag.OwnUseAfterMove, sp,
					fmt.Sprintf("use of partially moved value `%s`", name)).
					WithNote(moveSp, fmt.Sprintf("`%s%s` moved here", f.fn.LocalName(p.Local), part)).
					Emit()
				return
			}
		}
	}
}

// move records ownership leaving the place. Moves through a reference do not
// touch the referent's tracked local; the frontend guarantees it never emits
// ownership transfer out of borrowed storage.
func (f *initFlow) move(p ir.Place, sp source.Span, st initState) {
	if p.Local < 0 || int(p.Local) >= len(st) {
		return
	}
	for _, step := range p.Proj {
		if step.Kind == ir.ProjDeref {
			return
		}
	}
	s := &st[p.Local]
	if len(p.Proj) == 0 {
		*s = localState{kind: stMoved, span: sp}
		return
	}
	if s.kind == stUninit || s.kind == stMoved {
		// read already reported; leave the worse fact in place
		return
	}
	if s.parts == nil {
		s.parts = make(map[string]source.Span)
	}
	s.kind = stPartial
	s.parts[pathKey(p)] = sp
}

// write makes the place initialized again. Whole-local writes clear every
// prior fact; sub-place writes only heal the parts they cover.
func (f *initFlow) write(p ir.Place, sp source.Span, st initState) {
	if p.Local < 0 || int(p.Local) >= len(st) {
		return
	}
	s := &st[p.Local]
	if len(p.Proj) == 0 {
		*s = localState{kind: stInit}
		return
	}
	switch s.kind {
	case stUninit, stMoved:
		// Field-by-field revival of dead storage is not modeled; the whole
		// local must be assigned first.
		code := diag.OwnUseOfUninit
		what := "uninitialized"
		if s.kind == stMoved {
			code = diag.OwnUseAfterMove
			what = "moved"
		}
		b := diag.ReportError(f.rep, code, sp,
			fmt.Sprintf("assignment into %s value `%s`", what, f.fn.LocalName(p.Local)))
		if s.kind == stMoved || s.dropped {
			b.WithNote(s.span, "value became invalid here")
		}
		b.Emit()
	case stPartial:
		key := pathKey(p)
		for part := range s.parts {
			// A write covers a part when the part sits at or below it.
			if pathsOverlap(key, part) && len(part) >= len(key) {
				delete(s.parts, part)
			}
		}
		if len(s.parts) == 0 {
			*s = localState{kind: stInit}
		}
	}
}

// drop ends the place's storage. Dropping an already dead local is a no-op:
// the frontend emits unconditional scope-exit drops.
func (f *initFlow) drop(p ir.Place, sp source.Span, st initState) {
	if p.Local < 0 || int(p.Local) >= len(st) {
		return
	}
	s := &st[p.Local]
	if len(p.Proj) == 0 {
		if s.kind == stUninit || s.kind == stMoved {
			return
		}
		*s = localState{kind: stUninit, span: sp, dropped: true}
		return
	}
	if s.kind == stInit || s.kind == stPartial {
		if s.parts == nil {
			s.parts = make(map[string]source.Span)
		}
		s.kind = stPartial
		s.parts[pathKey(p)] = sp
	}
}
