package cfg

import (
	"fmt"

	"rill/internal/ir"
	"rill/internal/source"
)

// Graph is one function's control-flow graph with a dense program-point
// numbering layered on top. Blocks[0] is always the entry.
type Graph struct {
	Fn     *ir.Func
	Blocks []*Block
	Entry  BlockID

	// RPO lists reachable blocks in reverse postorder; dataflow passes
	// iterate it so acyclic regions converge in one sweep.
	RPO   []BlockID
	Preds [][]BlockID

	// LoopHeads marks targets of back edges. Passes must iterate bodies of
	// these to fixpoint instead of trusting a single RPO sweep.
	LoopHeads map[BlockID]bool

	// Reachable[b] is false for blocks no path from entry reaches.
	Reachable []bool
	// DeadSpans collects spans of unreachable statements, one per dead
	// block, for the advisory dead-code warning.
	DeadSpans []source.Span

	pointBase []int
	numPoints int
}

// Build partitions the function body into basic blocks and wires the edges.
// The body must already be validated: unresolved labels are an error here,
// not a diagnostic.
func Build(fn *ir.Func) (*Graph, error) {
	g := &Graph{Fn: fn, Entry: 0, LoopHeads: make(map[BlockID]bool)}

	// Pass 1: carve blocks. A label opens a block; so does the statement
	// after a terminator. Label statements delimit blocks and are not kept
	// in them; the label -> block map is recorded here.
	labelBlock := make(map[string]BlockID)
	start := 0
	for start <= len(fn.Body) {
		if start == len(fn.Body) {
			if len(g.Blocks) == 0 {
				// Empty body: a single block falling off the end.
				g.Blocks = append(g.Blocks, &Block{ID: 0})
			}
			break
		}
		id := BlockID(len(g.Blocks)) // #nosec G115 -- block count fits int32
		b := &Block{ID: id}
		i := start
		for i < len(fn.Body) && fn.Body[i].Kind == ir.StmtLabel {
			name := fn.Body[i].Label.Name
			if _, dup := labelBlock[name]; dup {
				return nil, fmt.Errorf("cfg: duplicate label %q", name)
			}
			labelBlock[name] = id
			i++
		}
		for i < len(fn.Body) {
			s := fn.Body[i]
			if s.Kind == ir.StmtLabel {
				break
			}
			if s.Terminates() {
				b.Term = makeTerm(&fn.Body[i])
				i++
				break
			}
			b.Stmts = append(b.Stmts, s)
			i++
		}
		g.Blocks = append(g.Blocks, b)
		start = i
	}

	// Pass 2: resolve terminators. Blocks without one fall through to the
	// next block, or return unit at the end of the body.
	resolve := func(label string) (BlockID, error) {
		id, ok := labelBlock[label]
		if !ok {
			return NoBlockID, fmt.Errorf("cfg: unresolved label %q", label)
		}
		return id, nil
	}
	for bi, b := range g.Blocks {
		t := &b.Term
		switch t.Kind {
		case TermNone:
			if bi+1 < len(g.Blocks) {
				t.Kind = TermGoto
				t.Goto.Target = BlockID(bi + 1) // #nosec G115 -- block count fits int32
			} else {
				t.Kind = TermReturn
				t.Span = fn.Span
			}
		case TermGoto:
			id, err := resolve(t.Goto.label)
			if err != nil {
				return nil, err
			}
			t.Goto.Target = id
		case TermIf:
			then, err := resolve(t.If.thenLabel)
			if err != nil {
				return nil, err
			}
			els, err := resolve(t.If.elseLabel)
			if err != nil {
				return nil, err
			}
			t.If.Then, t.If.Else = then, els
		case TermSwitch:
			for ci := range t.Switch.Cases {
				id, err := resolve(t.Switch.Cases[ci].label)
				if err != nil {
					return nil, err
				}
				t.Switch.Cases[ci].Target = id
			}
			id, err := resolve(t.Switch.defaultLabel)
			if err != nil {
				return nil, err
			}
			t.Switch.Default = id
		}
	}

	g.computeOrder()
	g.numberPoints()
	return g, nil
}

// makeTerm lifts a terminating statement into a Terminator. Label targets
// stay symbolic until pass 2 resolves them.
func makeTerm(s *ir.Stmt) Terminator {
	t := Terminator{Span: s.Span}
	switch s.Kind {
	case ir.StmtGoto:
		t.Kind = TermGoto
		t.Goto.label = s.Goto.Label
	case ir.StmtBranch:
		t.Kind = TermIf
		t.If.Cond = s.Branch.Cond
		t.If.thenLabel = s.Branch.Then
		t.If.elseLabel = s.Branch.Else
	case ir.StmtSwitch:
		t.Kind = TermSwitch
		t.Switch.Value = s.Switch.Value
		for _, c := range s.Switch.Cases {
			t.Switch.Cases = append(t.Switch.Cases, SwitchCase{Tag: c.Tag, label: c.Label})
		}
		t.Switch.defaultLabel = s.Switch.Default
	case ir.StmtReturn:
		t.Kind = TermReturn
		t.Return.HasValue = s.Return.HasValue
		t.Return.Value = s.Return.Value
	case ir.StmtUnreachable:
		t.Kind = TermUnreachable
	}
	return t
}

// computeOrder runs one DFS from entry for reachability, back edges and
// postorder, then derives RPO, preds and dead spans.
func (g *Graph) computeOrder() {
	n := len(g.Blocks)
	g.Reachable = make([]bool, n)
	g.Preds = make([][]BlockID, n)
	onStack := make([]bool, n)
	var post []BlockID

	var scratch []BlockID
	var dfs func(BlockID)
	dfs = func(b BlockID) {
		g.Reachable[b] = true
		onStack[b] = true
		scratch = g.Blocks[b].Term.Successors(scratch[:0])
		succs := append([]BlockID(nil), scratch...)
		for _, s := range succs {
			g.Preds[s] = append(g.Preds[s], b)
			if onStack[s] {
				g.LoopHeads[s] = true
				continue
			}
			if !g.Reachable[s] {
				dfs(s)
			}
		}
		onStack[b] = false
		post = append(post, b)
	}
	dfs(g.Entry)

	g.RPO = make([]BlockID, len(post))
	for i, b := range post {
		g.RPO[len(post)-1-i] = b
	}

	for bi, b := range g.Blocks {
		if g.Reachable[bi] {
			continue
		}
		sp := b.Span()
		if sp.Empty() && len(b.Stmts) == 0 && b.Term.Kind == TermNone {
			continue
		}
		g.DeadSpans = append(g.DeadSpans, sp)
	}
}

// numberPoints assigns each block a contiguous point range and appends the
// synthetic exit point last.
func (g *Graph) numberPoints() {
	g.pointBase = make([]int, len(g.Blocks))
	n := 0
	for i, b := range g.Blocks {
		g.pointBase[i] = n
		n += len(b.Stmts) + 1
	}
	g.numPoints = n + 1
}
