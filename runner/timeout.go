package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// safeCall invokes body and converts a panic into an error. A panic carrying
// an error value is returned as that error so it is classified by its own kind.
func safeCall(ctx context.Context, body types.Executable, tc types.TestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return body.Execute(ctx, tc)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return types.Throw(types.KindPanic, "panic: %v", r)
}

// runWithTimeout runs body inline when timeout is zero. Otherwise the body runs
// on a worker goroutine and the caller waits at most timeout. On expiry the
// worker's context is cancelled and the caller returns without waiting for the
// worker to stop; whatever the worker later returns is logged and dropped.
func runWithTimeout(ctx context.Context, timeout time.Duration, body types.Executable, tc types.TestContext, logger log.Logger) error {
	if timeout <= 0 {
		return safeCall(ctx, body, tc)
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	view := newDetachableContext(tc)
	done := make(chan error, 1)
	go func() {
		done <- safeCall(wctx, body, view)
	}()

	select {
	case err := <-done:
		cancel()
		return err
	case <-wctx.Done():
		cancel()
		view.detach()
		test, name := view.test, view.unit
		if name == "" {
			name = test
		}
		go func() {
			late := <-done
			logger.Debug("Suppressed result of cancelled worker", "test", test, "unit", name, "err", late)
		}()
		if errors.Is(wctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &types.Exception{
				ExceptionKind: types.KindTimeout,
				Message:       fmt.Sprintf("%s did not complete within %s", name, timeout),
				Cause:         wctx.Err(),
			}
		}
		return fmt.Errorf("run cancelled: %w", ctx.Err())
	}
}

// detachableContext is the view a timeout worker gets of the suite context.
// Once detached, writes are dropped and reads see the values captured when the
// worker started, so a worker that outlives its deadline cannot touch the
// state of the executions that follow.
type detachableContext struct {
	mu       sync.Mutex
	detached bool
	tc       types.TestContext

	logger   log.Logger
	suite    string
	test     string
	unit     string
	params   map[string]string
	paramIdx int
	unitIdx  int
}

var _ types.TestContext = (*detachableContext)(nil)

func newDetachableContext(tc types.TestContext) *detachableContext {
	return &detachableContext{
		tc:       tc,
		logger:   tc.Logger(),
		suite:    tc.Suite(),
		test:     tc.Test(),
		unit:     tc.Unit(),
		params:   tc.Params(),
		paramIdx: tc.ParameterIndex(),
		unitIdx:  tc.UnitParameterIndex(),
	}
}

func (d *detachableContext) detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = true
}

func (d *detachableContext) SetStatus(status types.Status, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		d.logger.Debug("Dropped status write from cancelled worker", "status", status, "reason", reason)
		return
	}
	d.tc.SetStatus(status, reason)
}

func (d *detachableContext) Status() types.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return types.StatusFail
	}
	return d.tc.Status()
}

func (d *detachableContext) SetKnownToFail(ktf bool, bugRef string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.detached {
		d.tc.SetKnownToFail(ktf, bugRef)
	}
}

func (d *detachableContext) KnownToFail() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return false, ""
	}
	return d.tc.KnownToFail()
}

func (d *detachableContext) Param(name string) (string, bool) {
	v, ok := d.params[name]
	return v, ok
}

func (d *detachableContext) Params() map[string]string {
	return maps.Clone(d.params)
}

func (d *detachableContext) ParameterIndex() int {
	return d.paramIdx
}

func (d *detachableContext) UnitParameterIndex() int {
	return d.unitIdx
}

func (d *detachableContext) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return nil, false
	}
	return d.tc.Get(key)
}

func (d *detachableContext) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.detached {
		d.tc.Set(key, value)
	}
}

func (d *detachableContext) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.detached {
		d.tc.Delete(key)
	}
}

func (d *detachableContext) Suite() string      { return d.suite }
func (d *detachableContext) Test() string       { return d.test }
func (d *detachableContext) Unit() string       { return d.unit }
func (d *detachableContext) Logger() log.Logger { return d.logger }
