package borrow

import (
	"fmt"

	"rill/internal/cfg"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/types"
)

// DefaultMaxIters bounds every fixpoint loop. Real bodies converge in a
// handful of sweeps; hitting the cap means a malformed graph, and checking
// aborts with an error instead of spinning.
const DefaultMaxIters = 10000

// DefaultMaxDiagnostics caps one function's diagnostic bag.
const DefaultMaxDiagnostics = 128

// Options tunes one function check.
type Options struct {
	MaxIters       int
	MaxDiagnostics int
}

func (o Options) withDefaults() Options {
	if o.MaxIters <= 0 {
		o.MaxIters = DefaultMaxIters
	}
	if o.MaxDiagnostics <= 0 {
		o.MaxDiagnostics = DefaultMaxDiagnostics
	}
	return o
}

// Result is one function's verdict: the diagnostics found plus the solved
// loan regions for tooling that wants to inspect them.
type Result struct {
	Fn       string
	Accepted bool
	Graph    *cfg.Graph
	Loans    []*Loan
	Diags    *diag.Bag
}

// CheckFunc verifies one function. A returned error means the input was
// malformed (broken labels, unknown callees, a diverging fixpoint) and says
// nothing about the program's ownership discipline; ownership verdicts come
// back as diagnostics in the Result.
func CheckFunc(fn *ir.Func, tin *types.Interner, sigs *ir.SignatureTable, opts Options) (*Result, error) {
	if fn == nil {
		return nil, fmt.Errorf("borrow: nil function")
	}
	if tin == nil {
		return nil, fmt.Errorf("borrow: nil type table")
	}
	opts = opts.withDefaults()
	if err := ir.ValidateFunc(fn, tin, sigs); err != nil {
		return nil, fmt.Errorf("borrow: %s: %w", fn.Name, err)
	}

	g, err := cfg.Build(fn)
	if err != nil {
		return nil, fmt.Errorf("borrow: %s: %w", fn.Name, err)
	}

	bag := diag.NewBag(opts.MaxDiagnostics)
	rep := diag.BagReporter{Bag: bag}

	for _, sp := range g.DeadSpans {
		diag.ReportWarning(rep, diag.FlowDeadCode, sp, "unreachable code").Emit()
	}

	flow, err := runInitFlow(g, fn, tin, opts.MaxIters)
	if err != nil {
		return nil, err
	}
	flow.report(rep)

	lv, err := runLiveness(g, fn, opts.MaxIters)
	if err != nil {
		return nil, err
	}
	lt := collectLoans(g)
	rs, err := solveRegions(g, fn, tin, sigs, lt, lv, opts.MaxIters)
	if err != nil {
		return nil, err
	}

	checkConflicts(rs, rep)
	rs.checkDangling(rep)

	bag.Sort()
	bag.Dedup()
	return &Result{
		Fn:       fn.Name,
		Accepted: !bag.HasErrors(),
		Graph:    g,
		Loans:    lt.loans,
		Diags:    bag,
	}, nil
}
