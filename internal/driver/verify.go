package driver

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"rill/internal/borrow"
	"rill/internal/diag"
	"rill/internal/ir"
	"rill/internal/observ"
	"rill/internal/project"
)

// Status is a progress event state for one function.
type Status uint8

const (
	StatusQueued Status = iota
	StatusChecking
	StatusOK
	StatusRejected
	StatusCached
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	case StatusCached:
		return "cached"
	}
	return "queued"
}

// Event is one progress notification sent to Options.Events.
type Event struct {
	Func   string
	Status Status
}

// Options configures a module verification batch.
type Options struct {
	// Jobs caps concurrent function checks; 0 means one per CPU.
	Jobs int
	// MaxDiagnostics caps each function's diagnostic bag.
	MaxDiagnostics int
	// SolverMaxIters bounds the dataflow fixpoint loops.
	SolverMaxIters int
	// Cache, when non-nil, short-circuits unchanged functions.
	Cache *DiskCache
	// Events, when non-nil, receives progress notifications. The channel is
	// closed when the batch finishes.
	Events chan<- Event
	// Timer, when non-nil, records per-phase durations.
	Timer *observ.Timer
}

// FuncResult is one function's verdict within a batch.
type FuncResult struct {
	Name     string
	Accepted bool
	Cached   bool
	Bag      *diag.Bag
	// Check carries solved loans and the CFG for tooling; nil on cache hits.
	Check *borrow.Result
}

// ModuleResult aggregates a whole batch.
type ModuleResult struct {
	Module   string
	Accepted bool
	Funcs    []FuncResult
	// Bag merges every function's diagnostics, sorted for stable output.
	Bag *diag.Bag
}

// VerifyModule checks every function of a module concurrently. Function
// order in the result matches the module; diagnostics merge deterministically
// afterwards. A returned error means malformed input or I/O trouble, and the
// whole batch aborts.
func VerifyModule(ctx context.Context, m *ir.Module, opts Options) (*ModuleResult, error) {
	if m == nil {
		return nil, fmt.Errorf("driver: nil module")
	}
	if opts.Events != nil {
		defer close(opts.Events)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = borrow.DefaultMaxDiagnostics
	}

	var envHash project.Digest
	if opts.Cache != nil {
		h, err := moduleEnvHash(m)
		if err != nil {
			return nil, fmt.Errorf("driver: hashing module environment: %w", err)
		}
		envHash = h
	}

	results := make([]FuncResult, len(m.Funcs))

	var tIdx int
	if opts.Timer != nil {
		tIdx = opts.Timer.Begin("verify")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(m.Funcs), 1)))

	for i, fn := range m.Funcs {
		g.Go(func(i int, fn *ir.Func) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				if fn == nil {
					return fmt.Errorf("driver: nil function at index %d", i)
				}
				emit(opts.Events, Event{Func: fn.Name, Status: StatusChecking})

				if opts.Cache != nil {
					key, err := funcHash(fn, envHash)
					if err == nil {
						var payload CachePayload
						if hit, err := opts.Cache.Get(key, &payload); err == nil && hit {
							bag := diag.NewBag(maxDiags)
							for _, d := range payload.Diags {
								bag.Add(d)
							}
							results[i] = FuncResult{
								Name: fn.Name, Accepted: payload.Accepted,
								Cached: true, Bag: bag,
							}
							emit(opts.Events, Event{Func: fn.Name, Status: StatusCached})
							return nil
						}
					}
				}

				res, err := borrow.CheckFunc(fn, m.Types, m.Sigs, borrow.Options{
					MaxIters:       opts.SolverMaxIters,
					MaxDiagnostics: maxDiags,
				})
				if err != nil {
					return err
				}
				results[i] = FuncResult{
					Name: fn.Name, Accepted: res.Accepted,
					Bag: res.Diags, Check: res,
				}

				if opts.Cache != nil {
					if key, err := funcHash(fn, envHash); err == nil {
						_ = opts.Cache.Put(key, &CachePayload{
							Schema: cacheSchemaVersion, Name: fn.Name,
							Accepted: res.Accepted, Diags: res.Diags.Items(),
						})
					}
				}

				status := StatusOK
				if !res.Accepted {
					status = StatusRejected
				}
				emit(opts.Events, Event{Func: fn.Name, Status: status})
				return nil
			}
		}(i, fn))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ModuleResult{
		Module:   m.Name,
		Accepted: true,
		Funcs:    results,
		Bag:      diag.NewBag(maxDiags * max(len(m.Funcs), 1)),
	}
	for i := range results {
		if !results[i].Accepted {
			out.Accepted = false
		}
		out.Bag.Merge(results[i].Bag)
	}
	out.Bag.Sort()

	if opts.Timer != nil {
		opts.Timer.End(tIdx, fmt.Sprintf("%d functions", len(m.Funcs)))
	}
	return out, nil
}

func emit(ch chan<- Event, ev Event) {
	if ch != nil {
		ch <- ev
	}
}
