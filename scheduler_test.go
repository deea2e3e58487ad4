package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScheduler_RunOnce(t *testing.T) {
	var calls atomic.Int32
	scheduler := NewRunScheduler(10*time.Millisecond, true, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	assert.Equal(t, int32(1), calls.Load())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "run-once must not schedule further runs")
}

func TestRunScheduler_Periodic(t *testing.T) {
	callChan := make(chan struct{}, 10)
	scheduler := NewRunScheduler(10*time.Millisecond, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(context.Context) error {
		select {
		case callChan <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))

	for i := 0; i < 3; i++ {
		select {
		case <-callChan:
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for run %d", i+1)
		}
	}

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(ctx))
	assert.True(t, scheduler.Stopped())

	// drain anything that raced with Stop, then expect silence
	for len(callChan) > 0 {
		<-callChan
	}
	select {
	case <-callChan:
		t.Fatal("run after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunScheduler_PeriodicErrorsDoNotStop(t *testing.T) {
	var calls atomic.Int32
	scheduler := NewRunScheduler(5*time.Millisecond, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(context.Context) error {
		if calls.Add(1) > 1 {
			return errors.New("flaky")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, scheduler.WaitForShutdown(context.Background()))
	assert.True(t, scheduler.Stopped())
}

func TestRunScheduler_CallbackError(t *testing.T) {
	expected := errors.New("callback error")
	for _, runOnce := range []bool{true, false} {
		scheduler := NewRunScheduler(time.Hour, runOnce, log.NewLogger(log.DiscardHandler()))
		scheduler.RegisterCallback(func(context.Context) error {
			return expected
		})
		assert.Equal(t, expected, scheduler.Start(context.Background()))
	}
}

func TestRunScheduler_NoCallback(t *testing.T) {
	scheduler := NewRunScheduler(time.Hour, true, log.NewLogger(log.DiscardHandler()))
	err := scheduler.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback must be registered")
}

func TestRunScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewRunScheduler(time.Hour, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(context.Context) error { return nil })

	assert.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.Start(context.Background()))
	assert.False(t, scheduler.Stopped())
	assert.NoError(t, scheduler.Stop())
	assert.NoError(t, scheduler.Stop())
	assert.NoError(t, scheduler.WaitForShutdown(context.Background()))
}
