package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/ir"
)

// liveness computes, per program point, which locals may still be read on
// some path onward. Loan regions extend exactly as far as their holders stay
// live, which is what makes checking non-lexical.
type liveness struct {
	g *cfg.Graph
	// perPoint[b][i] is the live set before point i of block b; index
	// len(Stmts) is the terminator.
	perPoint [][]LocalSet
}

func runLiveness(g *cfg.Graph, fn *ir.Func, maxIters int) (*liveness, error) {
	lv := &liveness{g: g, perPoint: make([][]LocalSet, len(g.Blocks))}
	n := len(fn.Locals)

	liveIn := make([]LocalSet, len(g.Blocks))
	for _, b := range g.RPO {
		liveIn[b] = NewLocalSet(n)
	}

	// Backward fixpoint on block boundaries first.
	iters := 0
	for changed := true; changed; {
		iters++
		if iters > maxIters {
			return nil, fmt.Errorf("borrow: liveness did not converge within %d iterations", maxIters)
		}
		changed = false
		var scratch []cfg.BlockID
		for i := len(g.RPO) - 1; i >= 0; i-- {
			b := g.RPO[i]
			live := NewLocalSet(n)
			scratch = g.Blocks[b].Term.Successors(scratch[:0])
			for _, s := range scratch {
				if liveIn[s] != nil {
					live.Union(liveIn[s])
				}
			}
			transferBlockBackward(g.Blocks[b], live)
			if liveIn[b].Union(live) {
				changed = true
			}
		}
	}

	// One more backward sweep records the per-point sets.
	var scratch []cfg.BlockID
	for _, b := range g.RPO {
		blk := g.Blocks[b]
		points := make([]LocalSet, len(blk.Stmts)+1)
		live := NewLocalSet(n)
		scratch = blk.Term.Successors(scratch[:0])
		for _, s := range scratch {
			if liveIn[s] != nil {
				live.Union(liveIn[s])
			}
		}
		if op := blk.Term.Operand(); op != nil {
			genOperand(op, live)
		}
		points[len(blk.Stmts)] = live.Clone()
		for i := len(blk.Stmts) - 1; i >= 0; i-- {
			transferStmtBackward(&blk.Stmts[i], live)
			points[i] = live.Clone()
		}
		lv.perPoint[b] = points
	}
	return lv, nil
}

// liveAt returns the live set before point i of block b, nil for
// unreachable blocks.
func (lv *liveness) liveAt(b cfg.BlockID, i int) LocalSet {
	if lv.perPoint[b] == nil {
		return nil
	}
	return lv.perPoint[b][i]
}

func transferBlockBackward(blk *cfg.Block, live LocalSet) {
	if op := blk.Term.Operand(); op != nil {
		genOperand(op, live)
	}
	for i := len(blk.Stmts) - 1; i >= 0; i-- {
		transferStmtBackward(&blk.Stmts[i], live)
	}
}

func transferStmtBackward(s *ir.Stmt, live LocalSet) {
	switch s.Kind {
	case ir.StmtAssign:
		killDef(s.Assign.Dst, live)
		var scratch [8]*ir.Operand
		for _, op := range s.Assign.Src.Operands(scratch[:0]) {
			genOperand(op, live)
		}
	case ir.StmtCall:
		if s.Call.HasDst {
			killDef(s.Call.Dst, live)
		}
		for i := range s.Call.Args {
			genOperand(&s.Call.Args[i], live)
		}
	case ir.StmtDrop:
		// Storage end is not a read; a loan need not outlive its holder's
		// drop.
		if len(s.Drop.Place.Proj) == 0 {
			live.Remove(s.Drop.Place.Local)
		}
	}
}

// killDef removes a whole-local definition. A projection write keeps the
// root live: the rest of the aggregate flows through.
func killDef(p ir.Place, live LocalSet) {
	if len(p.Proj) == 0 {
		live.Remove(p.Local)
	} else {
		live.Add(p.Local)
	}
}

func genOperand(op *ir.Operand, live LocalSet) {
	if op.Kind == ir.OperandConst {
		return
	}
	live.Add(op.Place.Local)
}
