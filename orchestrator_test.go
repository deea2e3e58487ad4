package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/catalog"
	"github.com/ethereum-optimism/infra/op-orchestrator/service"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

type fakeExecutor struct {
	calls   atomic.Int32
	results []types.SuiteResult
	err     error
}

func (f *fakeExecutor) Execute(context.Context, string) ([]types.SuiteResult, error) {
	f.calls.Add(1)
	return f.results, f.err
}

type publishRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (p *publishRecorder) Publish(runID string, _ []types.SuiteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, runID)
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

func suite(name string, status types.Status) types.SuiteResult {
	now := time.Now()
	return types.SuiteResult{Name: name, Status: status, Start: now, Finish: now.Add(time.Millisecond), Loops: 1}
}

func newTestOrchestrator(t *testing.T, exec Executor, runOnce bool) (*Orchestrator, *publishRecorder, *atomic.Int32) {
	t.Helper()
	logger := log.NewLogger(log.DiscardHandler())
	cfg := &Config{Log: logger, RunOnce: runOnce, RunInterval: 10 * time.Millisecond}
	pub := &publishRecorder{}
	var shutdowns atomic.Int32
	o := &Orchestrator{
		config:           cfg,
		executor:         exec,
		scheduler:        NewRunScheduler(cfg.RunInterval, runOnce, logger),
		publisher:        pub,
		out:              &bytes.Buffer{},
		shutdownCallback: func(error) { shutdowns.Add(1) },
	}
	t.Cleanup(func() {
		_ = o.Stop(context.Background())
	})
	return o, pub, &shutdowns
}

func TestOrchestrator_RunOncePass(t *testing.T) {
	exec := &fakeExecutor{results: []types.SuiteResult{suite("a", types.StatusPass), suite("b", types.StatusSkip)}}
	o, pub, shutdowns := newTestOrchestrator(t, exec, true)

	require.NoError(t, o.Start(context.Background()))
	assert.Equal(t, int32(1), exec.calls.Load())
	assert.Equal(t, 1, pub.count())
	require.NotNil(t, o.LastRun())
	assert.Equal(t, types.StatusPass, o.LastRun().Status)
	assert.Contains(t, o.out.(*bytes.Buffer).String(), "Results")
	require.Eventually(t, func() bool { return shutdowns.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_RunOnceFailure(t *testing.T) {
	exec := &fakeExecutor{results: []types.SuiteResult{suite("a", types.StatusPass), suite("b", types.StatusFail)}}
	o, _, shutdowns := newTestOrchestrator(t, exec, true)

	err := o.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "1 of 2 suites failed: b")
	var failure *TestFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"b"}, failure.Failed)
	assert.Equal(t, int32(0), shutdowns.Load())
}

func TestOrchestrator_RuntimeError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("suite x: engine defect")}
	o, pub, _ := newTestOrchestrator(t, exec, true)

	err := o.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.Nil(t, o.LastRun())
	assert.Equal(t, 1, pub.count(), "partial results are still published")
}

func TestOrchestrator_Periodic(t *testing.T) {
	exec := &fakeExecutor{results: []types.SuiteResult{suite("a", types.StatusFail)}}
	o, pub, shutdowns := newTestOrchestrator(t, exec, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, o.Start(ctx), "failures do not end a periodic run")
	require.Eventually(t, func() bool { return exec.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, pub.count(), 3)
	assert.False(t, o.Stopped())

	require.NoError(t, o.Stop(context.Background()))
	assert.True(t, o.Stopped())
	assert.Equal(t, int32(0), shutdowns.Load())
}

func TestOrchestrator_StopBeforeStart(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeExecutor{}, true)
	assert.True(t, o.Stopped())
	assert.NoError(t, o.Stop(context.Background()))
}

func TestNew(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())

	_, err := New(context.Background(), nil, "v0", func(error) {})
	require.Error(t, err)

	_, err = New(context.Background(), &Config{Log: logger, CatalogPath: "testdata/missing.yaml"}, "v0", func(error) {})
	require.ErrorContains(t, err, "failed to load catalog")

	_, err = New(context.Background(), &Config{Log: logger, CatalogPath: "testdata/catalog.yaml", Suites: []string{"blue"}}, "v0", func(error) {})
	require.ErrorContains(t, err, `suite "blue" is not defined`)

	o, err := New(context.Background(), &Config{Log: logger, CatalogPath: "testdata/catalog.yaml", RunOnce: true}, "v0", func(error) {})
	require.NoError(t, err)
	assert.NotNil(t, o.svc)
	assert.Nil(t, o.db)
	assert.Equal(t, o.svc.Results, o.publisher)
}

func TestCatalogExecutor(t *testing.T) {
	cat, err := catalog.Load("testdata/catalog.yaml")
	require.NoError(t, err)
	logDir := t.TempDir()

	exec := &CatalogExecutor{Catalog: cat, Config: &Config{
		Log:              log.NewLogger(log.DiscardHandler()),
		LogDir:           logDir,
		MaxParallel:      1,
		ShowProgress:     true,
		ProgressInterval: time.Hour,
	}}
	results, err := exec.Execute(context.Background(), "run-7")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "green", results[0].Name)
	assert.Equal(t, types.StatusPass, results[0].Status)
	assert.Equal(t, 2, results[0].Tests.Pass)
	assert.Equal(t, "red", results[1].Name)
	assert.Equal(t, types.StatusFail, results[1].Status)
	assert.Equal(t, 1, results[1].Tests.FailedByImportance[types.ImportanceHigh])

	_, err = os.Stat(filepath.Join(logDir, "testrun-run-7", "red.summary.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(logDir, "testrun-run-7", "events.jsonl"))
	assert.NoError(t, err)
}

func TestCatalogExecutor_SelectedSuites(t *testing.T) {
	cat, err := catalog.Load("testdata/catalog.yaml")
	require.NoError(t, err)

	exec := &CatalogExecutor{Catalog: cat, Config: &Config{
		Log:    log.NewLogger(log.DiscardHandler()),
		LogDir: t.TempDir(),
		Suites: []string{"green"},
		Loops:  2,
	}}
	results, err := exec.Execute(context.Background(), "run-8")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Loops)
	assert.Equal(t, 4, results[0].Tests.Pass)
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	cat, err := catalog.Load("testdata/catalog.yaml")
	require.NoError(t, err)
	logger := log.NewLogger(log.DiscardHandler())
	cfg := &Config{Log: logger, LogDir: t.TempDir(), RunOnce: true, Suites: []string{"green"}}
	results := service.NewResults()

	o := &Orchestrator{
		config:           cfg,
		executor:         &CatalogExecutor{Catalog: cat, Config: cfg},
		scheduler:        NewRunScheduler(0, true, logger),
		publisher:        results,
		out:              &bytes.Buffer{},
		shutdownCallback: func(error) {},
	}
	require.NoError(t, o.Start(context.Background()))
	require.NotNil(t, results.Last())
	assert.Equal(t, types.StatusPass, results.Last().Status)
	assert.Equal(t, o.LastRun().ID, results.Last().RunID)
}

type fakeLease struct {
	held     bool
	err      error
	released atomic.Int32
}

func (f *fakeLease) Acquire(context.Context) (bool, error) { return f.held, f.err }

func (f *fakeLease) Release(context.Context) error {
	f.released.Add(1)
	return nil
}

func TestOrchestrator_Lease(t *testing.T) {
	tests := []struct {
		name     string
		lease    *fakeLease
		calls    int32
		released int32
		runtime  bool
	}{
		{"held here", &fakeLease{held: true}, 1, 1, false},
		{"held elsewhere", &fakeLease{held: false}, 0, 0, false},
		{"redis down", &fakeLease{err: errors.New("connection refused")}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{results: []types.SuiteResult{suite("a", types.StatusPass)}}
			o, _, _ := newTestOrchestrator(t, exec, true)
			o.lease = tt.lease

			err := o.Start(context.Background())
			if tt.runtime {
				require.Error(t, err)
				assert.True(t, IsRuntimeError(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.calls, exec.calls.Load())
			assert.Equal(t, tt.released, tt.lease.released.Load())
		})
	}
}

func TestLeaseName(t *testing.T) {
	assert.Equal(t, "catalog.yaml", leaseName(&Config{CatalogPath: "/etc/suites/catalog.yaml"}))
	assert.Equal(t, "catalog.yaml:smoke,nightly", leaseName(&Config{CatalogPath: "catalog.yaml", Suites: []string{"smoke", "nightly"}}))
}
