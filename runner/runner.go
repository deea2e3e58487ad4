package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
	"github.com/ethereum-optimism/infra/op-orchestrator/reporting"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// State is the lifecycle state of a SuiteRunner.
type State int32

const (
	SuiteIdle State = iota
	SuiteRunning
	SuiteDone
)

func (s State) String() string {
	switch s {
	case SuiteIdle:
		return "idle"
	case SuiteRunning:
		return "running"
	case SuiteDone:
		return "done"
	default:
		return "unknown"
	}
}

// SuiteConfig holds everything needed to run one suite. Tests and Scenarios
// must already be filtered and ordered.
type SuiteConfig struct {
	Name      string
	RunID     string
	Tests     []*types.TestDescriptor
	Scenarios []*types.Scenario
	Hooks     types.Hooks
	// LoopCount is the number of passes over the ordered list, at least one.
	LoopCount int
	// StopOnFail abandons the remaining tests of the current and all further
	// loops once any test has failed.
	StopOnFail bool
	Listeners  []listener.Listener
	Log        log.Logger
}

// SuiteRunner executes one suite on the calling goroutine.
type SuiteRunner struct {
	cfg    SuiteConfig
	ctx    *ExecutionContext
	events *listener.Fanout
	log    log.Logger
	tracer trace.Tracer
	state  atomic.Int32

	// passed holds the tests whose every row has passed so far in this run
	passed     map[string]bool
	background []*types.Step
	records    []types.TestRecord
	exceptions []string
	aborted    bool
}

// NewSuiteRunner validates cfg and creates a runner for it.
func NewSuiteRunner(cfg SuiteConfig) (*SuiteRunner, error) {
	if cfg.Name == "" {
		return nil, errors.New("suite name is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.LoopCount < 1 {
		cfg.LoopCount = 1
	}

	logger := cfg.Log.New("suite", cfg.Name, "run_id", cfg.RunID)
	events := listener.NewFanout(logger, cfg.Listeners...).OnPanic(func(event string, err error) {
		metrics.RecordErrorDetails("listener."+event, err)
	})
	r := &SuiteRunner{
		cfg:    cfg,
		ctx:    NewExecutionContext(cfg.Name, cfg.RunID, cfg.Hooks, logger),
		events: events,
		log:    logger,
		tracer: otel.Tracer("suite runner"),
		passed: make(map[string]bool),
	}
	for _, sc := range cfg.Scenarios {
		if sc.IsBackground {
			r.background = append(r.background, sc.Steps...)
		}
	}
	return r, nil
}

// State reports where the runner is in its lifecycle. Safe for concurrent use.
func (r *SuiteRunner) State() State {
	return State(r.state.Load())
}

// Context exposes the execution context for inspection after Run returns.
func (r *SuiteRunner) Context() *ExecutionContext {
	return r.ctx
}

// Run executes the suite and returns its result. The returned error is
// non-nil only for engine defects; the result is populated either way.
func (r *SuiteRunner) Run(ctx context.Context) (types.SuiteResult, error) {
	if !r.state.CompareAndSwap(int32(SuiteIdle), int32(SuiteRunning)) {
		return types.SuiteResult{}, fmt.Errorf("suite %s already started", r.cfg.Name)
	}
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("suite %s", r.cfg.Name))
	defer span.End()

	r.ctx.start = time.Now()
	r.log.Debug("Running suite", "tests", len(r.cfg.Tests), "scenarios", len(r.cfg.Scenarios), "loops", r.cfg.LoopCount, "stopOnFail", r.cfg.StopOnFail)
	r.events.SuiteStarted(types.SuiteInfo{
		Name:      r.cfg.Name,
		RunID:     r.cfg.RunID,
		Loops:     r.cfg.LoopCount,
		Tests:     len(r.cfg.Tests),
		Scenarios: r.countScenarios(),
		Start:     r.ctx.start,
	})

	if err := r.invokeHook(types.PhaseBeforeSuite, types.HookInfo{}); err != nil {
		r.suiteException(fmt.Errorf("before-suite hook: %w", err))
		r.ctx.resetStore()
	}

	defect := r.runLoops(ctx)
	if defect != nil {
		r.suiteException(defect)
		span.RecordError(defect)
	} else if err := r.invokeHook(types.PhaseAfterSuite, types.HookInfo{}); err != nil {
		r.suiteException(fmt.Errorf("after-suite hook: %w", err))
	}

	r.ctx.finish = time.Now()
	result := r.result()
	span.SetAttributes(
		attribute.String("status", result.Status.String()),
		attribute.Int("tests", result.Tests.Total()),
		attribute.Int("failed", result.Tests.Fail),
	)
	if result.Status == types.StatusFail {
		span.SetStatus(codes.Error, "suite failed")
	}

	r.events.Summary(r.cfg.Name, reporting.Summarize(result))
	r.events.SuiteFinished(result)
	r.state.Store(int32(SuiteDone))
	return result, defect
}

func (r *SuiteRunner) runLoops(ctx context.Context) error {
	for loop := 1; loop <= r.cfg.LoopCount; loop++ {
		r.events.LoopChanged(r.cfg.Name, loop, r.cfg.LoopCount)
		for _, t := range r.cfg.Tests {
			if r.shouldStop(ctx) {
				return nil
			}
			if err := r.runTest(ctx, loop, t); err != nil {
				return err
			}
		}
		for _, sc := range r.cfg.Scenarios {
			if sc.IsBackground {
				continue
			}
			if r.shouldStop(ctx) {
				return nil
			}
			if err := r.runScenario(ctx, loop, sc); err != nil {
				return err
			}
		}
	}
	return nil
}

// shouldStop checks stop-on-fail and cancellation before the next test starts.
func (r *SuiteRunner) shouldStop(ctx context.Context) bool {
	if r.cfg.StopOnFail && r.ctx.tests.Fail > 0 {
		if !r.aborted {
			r.log.Warn("Stopping suite after failure", "failed", r.ctx.tests.FailNames)
		}
		r.aborted = true
		return true
	}
	if err := ctx.Err(); err != nil {
		if !r.aborted {
			r.suiteException(fmt.Errorf("suite interrupted: %w", err))
		}
		r.aborted = true
		return true
	}
	return false
}

func (r *SuiteRunner) countScenarios() int {
	n := 0
	for _, sc := range r.cfg.Scenarios {
		if !sc.IsBackground {
			n++
		}
	}
	return n
}

// invokeHook runs the hook for phase when one is registered. Panics are
// returned as errors.
func (r *SuiteRunner) invokeHook(phase types.HookPhase, info types.HookInfo) (err error) {
	hook := r.cfg.Hooks.For(phase)
	if hook == nil {
		return nil
	}
	info.Suite = r.cfg.Name
	info.Phase = phase
	r.events.HookStarted(info)
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
		r.events.HookFinished(info, err)
	}()
	return hook(r.ctx)
}

func (r *SuiteRunner) suiteException(err error) {
	r.exceptions = append(r.exceptions, err.Error())
	r.events.SuiteException(r.cfg.Name, err)
}

func (r *SuiteRunner) testException(info types.TestInfo, err error) {
	r.exceptions = append(r.exceptions, fmt.Sprintf("%s: %v", info.Name, err))
	r.events.TestException(info, err)
}

func (r *SuiteRunner) result() types.SuiteResult {
	tests := r.ctx.TestCounters()
	return types.SuiteResult{
		Name:       r.cfg.Name,
		RunID:      r.cfg.RunID,
		Status:     tests.Verdict(),
		Start:      r.ctx.start,
		Finish:     r.ctx.finish,
		Loops:      r.cfg.LoopCount,
		Tests:      tests,
		Units:      r.ctx.UnitCounters(),
		Records:    slices.Clone(r.records),
		Exceptions: slices.Clone(r.exceptions),
		Aborted:    r.aborted,
	}
}

// rowName is the counter name of one row of a parameterized test.
func rowName(name string, row, rows int) string {
	if rows <= 1 {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, row)
}
