package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

func discard() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func newTestContext() *ExecutionContext {
	return NewExecutionContext("suite", "run", types.Hooks{}, discard())
}

func TestRunWithTimeout_Expires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		select {
		case <-time.After(5 * time.Second):
		case <-release:
		}
		tc.SetStatus(types.StatusSkip, "late write")
		return nil
	})

	c := newTestContext()
	start := time.Now()
	err := runWithTimeout(context.Background(), 100*time.Millisecond, body, c, discard())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, types.StatusPass, c.Status(), "late worker writes are dropped")

	v := Classify(Outcome{Err: err, Current: c.Status()})
	assert.Equal(t, types.StatusFail, v.Status)
	assert.Contains(t, v.Diagnostic, msgTimedOut)
}

func TestRunWithTimeout_CooperativeBodySeesCancellation(t *testing.T) {
	stopped := make(chan struct{})
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	err := runWithTimeout(context.Background(), 50*time.Millisecond, body, newTestContext(), discard())
	require.Error(t, err)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker context was not cancelled")
	}
}

func TestRunWithTimeout_CompletesInTime(t *testing.T) {
	c := newTestContext()
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		tc.Set("seen", true)
		tc.SetStatus(types.StatusKTF, "marked")
		return nil
	})

	require.NoError(t, runWithTimeout(context.Background(), time.Second, body, c, discard()))
	assert.Equal(t, types.StatusKTF, c.Status())
	v, ok := c.Get("seen")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestRunWithTimeout_WorkerErrorIsReturnedUnwrapped(t *testing.T) {
	cause := types.Throw(types.KindAssertion, "bad value")
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		panic(cause)
	})

	err := runWithTimeout(context.Background(), time.Second, body, newTestContext(), discard())
	assert.Same(t, cause, err)
}

func TestSafeCall_Panics(t *testing.T) {
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		panic("kaboom")
	})
	err := safeCall(context.Background(), body, newTestContext())
	require.Error(t, err)
	assert.Equal(t, types.KindPanic, types.KindOf(err))
	assert.Contains(t, err.Error(), "kaboom")

	plain := errors.New("plain")
	body = types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		panic(plain)
	})
	assert.Same(t, plain, safeCall(context.Background(), body, newTestContext()))
}

func TestRunWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		cancel()
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	err := runWithTimeout(ctx, time.Second, body, newTestContext(), discard())
	if err != nil {
		assert.NotEqual(t, types.KindTimeout, types.KindOf(err))
	}
}
