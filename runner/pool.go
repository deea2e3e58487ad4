package runner

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Handle tracks a suite running on its own goroutine.
type Handle struct {
	name   string
	done   chan struct{}
	result types.SuiteResult
	err    error
}

// Start runs the suite described by cfg on a new goroutine. The suite's
// execution context is created and used only on that goroutine.
func Start(ctx context.Context, cfg SuiteConfig) *Handle {
	h := &Handle{name: cfg.Name, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.err = runSuite(ctx, cfg)
	}()
	return h
}

// Name is the suite name.
func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the suite has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the suite has finished and returns its result.
func (h *Handle) Wait() (types.SuiteResult, error) {
	<-h.done
	return h.result, h.err
}

// SuiteOutcome is the result of one suite of a multi-suite run.
type SuiteOutcome struct {
	Suite  string
	Result types.SuiteResult
	Err    error
}

// RunSuites runs the suites concurrently, at most maxParallel at a time (all
// of them when maxParallel is not positive). A failing or panicking suite
// does not affect its siblings. Outcomes are returned in input order.
func RunSuites(ctx context.Context, cfgs []SuiteConfig, maxParallel int) []SuiteOutcome {
	outcomes := make([]SuiteOutcome, len(cfgs))
	if len(cfgs) == 0 {
		return outcomes
	}
	if maxParallel <= 0 || maxParallel > len(cfgs) {
		maxParallel = len(cfgs)
	}

	p := pool.New().WithMaxGoroutines(maxParallel)
	for i, cfg := range cfgs {
		p.Go(func() {
			result, err := runSuite(ctx, cfg)
			outcomes[i] = SuiteOutcome{Suite: cfg.Name, Result: result, Err: err}
		})
	}
	p.Wait()
	return outcomes
}

// runSuite runs one suite and converts a panic escaping the runner into an
// engine defect for that suite alone.
func runSuite(ctx context.Context, cfg SuiteConfig) (result types.SuiteResult, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		var r *SuiteRunner
		r, err = NewSuiteRunner(cfg)
		if err != nil {
			return
		}
		result, err = r.Run(ctx)
	})
	if rec := pc.Recovered(); rec != nil {
		if cfg.Log != nil {
			cfg.Log.Error("Suite runner panicked", "suite", cfg.Name, "panic", rec.Value, "stack", string(rec.Stack))
		}
		result.Name = cfg.Name
		result.Status = types.StatusFail
		err = fmt.Errorf("%w: suite %s: %w", ErrEngineDefect, cfg.Name, rec.AsError())
	}
	return result, err
}
