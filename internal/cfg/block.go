package cfg

import (
	"rill/internal/ir"
	"rill/internal/source"
)

// BlockID indexes a graph's Blocks slice.
type BlockID int32

// NoBlockID marks an absent block.
const NoBlockID BlockID = -1

// Block is a straight-line statement sequence ending in one terminator.
// Stmts contains only non-control statements (assigns, calls, drops, nops).
type Block struct {
	ID    BlockID
	Stmts []ir.Stmt
	Term  Terminator
}

// Span covers the block's statements and terminator.
func (b *Block) Span() source.Span {
	var sp source.Span
	have := false
	for i := range b.Stmts {
		if b.Stmts[i].Span.Empty() && b.Stmts[i].Span.File == 0 && !have {
			continue
		}
		if !have {
			sp = b.Stmts[i].Span
			have = true
			continue
		}
		sp = sp.Cover(b.Stmts[i].Span)
	}
	if !have {
		return b.Term.Span
	}
	return sp.Cover(b.Term.Span)
}
