// Package listener broadcasts suite lifecycle events to observers.
//
// Listeners are invoked synchronously on the suite worker, in registration
// order. They receive value copies and must not block for long: the next test
// does not start until every listener has returned.
package listener

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Listener observes a suite run.
type Listener interface {
	SuiteStarted(info types.SuiteInfo)
	SuiteFinished(result types.SuiteResult)
	LoopChanged(suite string, loop, total int)
	TestStarted(info types.TestInfo)
	TestFinished(record types.TestRecord)
	UnitStarted(info types.UnitInfo)
	UnitFinished(summary types.UnitSummary)
	HookStarted(info types.HookInfo)
	HookFinished(info types.HookInfo, err error)
	SuiteException(suite string, err error)
	TestException(info types.TestInfo, err error)
	Summary(suite string, text string)
}

// Base implements every Listener method as a no-op. Embed it to observe a subset of events.
type Base struct{}

var _ Listener = Base{}

func (Base) SuiteStarted(types.SuiteInfo)        {}
func (Base) SuiteFinished(types.SuiteResult)     {}
func (Base) LoopChanged(string, int, int)        {}
func (Base) TestStarted(types.TestInfo)          {}
func (Base) TestFinished(types.TestRecord)       {}
func (Base) UnitStarted(types.UnitInfo)          {}
func (Base) UnitFinished(types.UnitSummary)      {}
func (Base) HookStarted(types.HookInfo)          {}
func (Base) HookFinished(types.HookInfo, error)  {}
func (Base) SuiteException(string, error)        {}
func (Base) TestException(types.TestInfo, error) {}
func (Base) Summary(string, string)              {}

// ErrListenerPanic is reported to the panic handler of a Fanout.
var ErrListenerPanic = errors.New("listener panic")

// Fanout forwards every event to its listeners in order. A listener that
// panics is logged and skipped; the remaining listeners still run.
type Fanout struct {
	listeners []Listener
	log       log.Logger
	onPanic   func(event string, err error)
}

var _ Listener = (*Fanout)(nil)

// NewFanout creates a Fanout over the given listeners. Nil entries are dropped.
func NewFanout(logger log.Logger, listeners ...Listener) *Fanout {
	if logger == nil {
		logger = log.New()
	}
	f := &Fanout{log: logger}
	for _, l := range listeners {
		if l != nil {
			f.listeners = append(f.listeners, l)
		}
	}
	return f
}

// OnPanic registers fn to be called with the event name whenever a listener
// panics.
func (f *Fanout) OnPanic(fn func(event string, err error)) *Fanout {
	f.onPanic = fn
	return f
}

// Len is the number of registered listeners.
func (f *Fanout) Len() int {
	return len(f.listeners)
}

func (f *Fanout) each(event string, fn func(Listener)) {
	for _, l := range f.listeners {
		f.call(event, l, fn)
	}
}

func (f *Fanout) call(event string, l Listener, fn func(Listener)) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Listener panicked",
				"event", event,
				"listener", fmt.Sprintf("%T", l),
				"panic", r,
				"stack", string(debug.Stack()))
			if f.onPanic != nil {
				f.onPanic(event, ErrListenerPanic)
			}
		}
	}()
	fn(l)
}

func (f *Fanout) SuiteStarted(info types.SuiteInfo) {
	f.each("suite-started", func(l Listener) { l.SuiteStarted(info) })
}

func (f *Fanout) SuiteFinished(result types.SuiteResult) {
	f.each("suite-finished", func(l Listener) { l.SuiteFinished(result) })
}

func (f *Fanout) LoopChanged(suite string, loop, total int) {
	f.each("loop-changed", func(l Listener) { l.LoopChanged(suite, loop, total) })
}

func (f *Fanout) TestStarted(info types.TestInfo) {
	f.each("test-started", func(l Listener) { l.TestStarted(info) })
}

func (f *Fanout) TestFinished(record types.TestRecord) {
	f.each("test-finished", func(l Listener) { l.TestFinished(record) })
}

func (f *Fanout) UnitStarted(info types.UnitInfo) {
	f.each("unit-started", func(l Listener) { l.UnitStarted(info) })
}

func (f *Fanout) UnitFinished(summary types.UnitSummary) {
	f.each("unit-finished", func(l Listener) { l.UnitFinished(summary) })
}

func (f *Fanout) HookStarted(info types.HookInfo) {
	f.each("hook-started", func(l Listener) { l.HookStarted(info) })
}

func (f *Fanout) HookFinished(info types.HookInfo, err error) {
	f.each("hook-finished", func(l Listener) { l.HookFinished(info, err) })
}

func (f *Fanout) SuiteException(suite string, err error) {
	f.each("suite-exception", func(l Listener) { l.SuiteException(suite, err) })
}

func (f *Fanout) TestException(info types.TestInfo, err error) {
	f.each("test-exception", func(l Listener) { l.TestException(info, err) })
}

func (f *Fanout) Summary(suite string, text string) {
	f.each("summary", func(l Listener) { l.Summary(suite, text) })
}
