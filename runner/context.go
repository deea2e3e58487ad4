package runner

import (
	"fmt"
	"maps"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// ExecutionContext is the mutable state of one running suite. It is owned by
// the suite's worker goroutine and must not be shared with other suites.
type ExecutionContext struct {
	suite string
	runID string
	log   log.Logger
	hooks types.Hooks

	status      types.Status
	reason      string
	knownToFail bool
	bugRef      string

	tests types.Counters
	units types.Counters

	start  time.Time
	finish time.Time

	test               string
	unit               string
	parameterIndex     int
	unitParameterIndex int
	params             map[string]string

	store map[string]any
}

var _ types.TestContext = (*ExecutionContext)(nil)

// NewExecutionContext creates the context for one suite run.
func NewExecutionContext(suite, runID string, hooks types.Hooks, logger log.Logger) *ExecutionContext {
	return &ExecutionContext{
		suite:  suite,
		runID:  runID,
		log:    logger,
		hooks:  hooks,
		params: make(map[string]string),
		store:  make(map[string]any),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// SetStatus records an outcome. A status ranked lower than the current one is
// ignored. Every FAIL write is logged with the frame that issued it.
func (c *ExecutionContext) SetStatus(status types.Status, reason string) {
	if status.Rank() < c.status.Rank() {
		return
	}
	if status.Rank() > c.status.Rank() || c.reason == "" {
		c.reason = reason
	}
	c.status = status
	if status == types.StatusFail {
		c.log.Info("Status marked fail", "test", c.test, "unit", c.unit, "reason", reason, "origin", callerFrame())
	}
}

// callerFrame names the code that called SetStatus.
func callerFrame() string {
	st := errors.New("fail").(stackTracer).StackTrace()
	// st[0] is callerFrame, st[1] SetStatus
	if len(st) < 3 {
		return "unknown"
	}
	return fmt.Sprintf("%n (%s:%d)", st[2], st[2], st[2])
}

func (c *ExecutionContext) Status() types.Status {
	return c.status
}

// Reason is the diagnostic attached to the current status.
func (c *ExecutionContext) Reason() string {
	return c.reason
}

func (c *ExecutionContext) SetKnownToFail(ktf bool, bugRef string) {
	c.knownToFail = ktf
	c.bugRef = bugRef
}

func (c *ExecutionContext) KnownToFail() (bool, string) {
	return c.knownToFail, c.bugRef
}

func (c *ExecutionContext) Param(name string) (string, bool) {
	v, ok := c.params[name]
	return v, ok
}

func (c *ExecutionContext) Params() map[string]string {
	return maps.Clone(c.params)
}

func (c *ExecutionContext) ParameterIndex() int {
	return c.parameterIndex
}

func (c *ExecutionContext) UnitParameterIndex() int {
	return c.unitParameterIndex
}

func (c *ExecutionContext) Get(key string) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}

func (c *ExecutionContext) Set(key string, value any) {
	c.store[key] = value
}

func (c *ExecutionContext) Delete(key string) {
	delete(c.store, key)
}

func (c *ExecutionContext) Suite() string {
	return c.suite
}

func (c *ExecutionContext) RunID() string {
	return c.runID
}

func (c *ExecutionContext) Test() string {
	return c.test
}

func (c *ExecutionContext) Unit() string {
	return c.unit
}

func (c *ExecutionContext) Logger() log.Logger {
	return c.log
}

// TestCounters returns a copy of the test level counters.
func (c *ExecutionContext) TestCounters() types.Counters {
	return c.tests.Clone()
}

// UnitCounters returns a copy of the unit level counters.
func (c *ExecutionContext) UnitCounters() types.Counters {
	return c.units.Clone()
}

// finalize overwrites the status with the classifier's verdict. This is the
// only write that may lower the rank, mapping a known failure to KTF. A verdict
// that turns the status into FAIL is marked like any other FAIL write.
func (c *ExecutionContext) finalize(v Verdict) {
	prev := c.status
	c.status = v.Status
	if v.Diagnostic != "" {
		c.reason = v.Diagnostic
	}
	if v.Status == types.StatusFail && prev != types.StatusFail {
		c.log.Info("Status marked fail", "test", c.test, "unit", c.unit, "reason", c.reason, "origin", "classifier")
	}
}

// resetOutcome clears the per-execution status and known-to-fail marker.
func (c *ExecutionContext) resetOutcome() {
	c.status = types.StatusPass
	c.reason = ""
	c.knownToFail = false
	c.bugRef = ""
}

func (c *ExecutionContext) resetStore() {
	c.store = make(map[string]any)
}
