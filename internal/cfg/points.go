package cfg

import (
	"rill/internal/ir"
	"rill/internal/source"
)

// Point is a dense program-point index. Each block contributes one point per
// statement plus one for its terminator; one synthetic exit point follows all
// blocks and models the caller-visible end of the function.
type Point int

// PointOf returns the point of statement idx in block b.
func (g *Graph) PointOf(b BlockID, idx int) Point {
	return Point(g.pointBase[b] + idx)
}

// TermPoint returns the point of block b's terminator.
func (g *Graph) TermPoint(b BlockID) Point {
	return Point(g.pointBase[b] + len(g.Blocks[b].Stmts))
}

// ExitPoint returns the synthetic function-exit point.
func (g *Graph) ExitPoint() Point {
	return Point(g.numPoints - 1)
}

// NumPoints returns the total point count, exit point included.
func (g *Graph) NumPoints() int {
	return g.numPoints
}

// BlockOf maps a point back to its block. The exit point maps to NoBlockID.
func (g *Graph) BlockOf(p Point) BlockID {
	if p == g.ExitPoint() {
		return NoBlockID
	}
	// pointBase is sorted by construction; blocks are small enough that a
	// linear scan would do, but binary search keeps dumps of big bodies cheap.
	lo, hi := 0, len(g.pointBase)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if Point(g.pointBase[mid]) <= p {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return BlockID(lo) // #nosec G115 -- block count fits int32
}

// StmtAt returns the statement at p, nil for terminator and exit points.
func (g *Graph) StmtAt(p Point) *ir.Stmt {
	b := g.BlockOf(p)
	if b == NoBlockID {
		return nil
	}
	idx := int(p) - g.pointBase[b]
	if idx >= len(g.Blocks[b].Stmts) {
		return nil
	}
	return &g.Blocks[b].Stmts[idx]
}

// SpanAt returns the source span of the statement or terminator at p.
func (g *Graph) SpanAt(p Point) source.Span {
	b := g.BlockOf(p)
	if b == NoBlockID {
		return g.Fn.Span
	}
	idx := int(p) - g.pointBase[b]
	if idx < len(g.Blocks[b].Stmts) {
		return g.Blocks[b].Stmts[idx].Span
	}
	return g.Blocks[b].Term.Span
}

// PointSet is a bitset over a graph's points. Region values and liveness
// ranges are PointSets; the constraint solver unions them to fixpoint.
type PointSet []uint64

// NewPointSet returns an empty set sized for n points.
func NewPointSet(n int) PointSet {
	return make(PointSet, (n+63)/64)
}

func (s PointSet) Add(p Point) {
	s[p>>6] |= 1 << (uint(p) & 63)
}

func (s PointSet) Remove(p Point) {
	s[p>>6] &^= 1 << (uint(p) & 63)
}

func (s PointSet) Has(p Point) bool {
	w := int(p >> 6)
	return w < len(s) && s[w]&(1<<(uint(p)&63)) != 0
}

// Union folds other into s and reports whether s grew.
func (s PointSet) Union(other PointSet) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

// Count returns the number of points in the set.
func (s PointSet) Count() int {
	n := 0
	for _, w := range s {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

func (s PointSet) Empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s PointSet) Clone() PointSet {
	return append(PointSet(nil), s...)
}
