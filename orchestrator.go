// Package orchestrator runs the suites of a catalog once or periodically,
// reports their results and keeps the latest run available over HTTP.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-orchestrator/catalog"
	"github.com/ethereum-optimism/infra/op-orchestrator/lease"
	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
	"github.com/ethereum-optimism/infra/op-orchestrator/reporting"
	"github.com/ethereum-optimism/infra/op-orchestrator/runner"
	"github.com/ethereum-optimism/infra/op-orchestrator/service"
	"github.com/ethereum-optimism/infra/op-orchestrator/store"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

var _ cliapp.Lifecycle = (*Orchestrator)(nil)

// Executor performs one pass over the selected suites.
type Executor interface {
	Execute(ctx context.Context, runID string) ([]types.SuiteResult, error)
}

// Publisher receives every completed run.
type Publisher interface {
	Publish(runID string, results []types.SuiteResult)
}

// Run is the outcome of one scheduled pass.
type Run struct {
	ID      string
	Status  types.Status
	Results []types.SuiteResult
}

type Orchestrator struct {
	config    *Config
	version   string
	executor  Executor
	scheduler Scheduler
	svc       *service.Service
	publisher Publisher
	db        store.Connection
	lease     lease.Lease
	out       io.Writer

	mu   sync.Mutex
	last *Run

	shutdownCallback func(error)
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating orchestrator with config",
		"catalog", config.CatalogPath,
		"suites", config.Suites,
		"groups", config.Groups,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	cat, err := catalog.Load(config.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, name := range config.Suites {
		if _, ok := cat.Suite(name); !ok {
			return nil, fmt.Errorf("suite %q is not defined in %s", name, config.CatalogPath)
		}
	}

	o := &Orchestrator{
		config:           config,
		version:          version,
		executor:         &CatalogExecutor{Catalog: cat, Config: config},
		scheduler:        NewRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		svc:              service.New(config.Service, config.Log),
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}
	o.publisher = o.svc.Results

	if config.DBURL != "" {
		db, err := store.New(ctx, config.DBURL, config.Log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		o.db = db
	}

	if config.RedisURL != "" {
		client, err := lease.NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := lease.CheckConnection(ctx, client); err != nil {
			return nil, err
		}
		o.lease = lease.NewRedisLease(client, leaseName(config), config.LeaseTTL, config.Log)
	}

	config.Log.Info("orchestrator.New: loaded catalog", "suites", len(cat.Suites))
	return o, nil
}

// Start runs the suites immediately and then, unless in run-once mode, at the
// configured interval.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.svc != nil {
		o.svc.Start(ctx)
	}

	o.scheduler.RegisterCallback(o.runSuites)
	if err := o.scheduler.Start(ctx); err != nil {
		o.config.Log.Error("Runtime error running suites", "error", err)
		return err
	}

	if o.config.RunOnce {
		o.config.Log.Info("Suites completed, exiting (run-once mode)")
		if last := o.LastRun(); last != nil && last.Status == types.StatusFail {
			o.config.Log.Warn("Run-once run completed with failures, returning exit code 1")
			return NewTestFailureError(last)
		}
		go func() {
			o.shutdownCallback(nil)
		}()
		return nil
	}

	o.config.Log.Debug("op-orchestrator started successfully")
	return nil
}

// runSuites performs one pass and hands its results to every sink.
func (o *Orchestrator) runSuites(ctx context.Context) error {
	if o.lease != nil {
		held, err := o.lease.Acquire(ctx)
		if err != nil {
			return NewRuntimeError(err)
		}
		if !held {
			o.config.Log.Info("Another replica is running this pass, skipping")
			return nil
		}
		defer func() {
			if err := o.lease.Release(context.Background()); err != nil {
				o.config.Log.Warn("Failed to release run lease", "error", err)
			}
		}()
	}

	runID := uuid.New().String()
	o.config.Log.Info("Running suites...", "run_id", runID)

	results, err := o.executor.Execute(ctx, runID)
	if len(results) > 0 {
		reporting.RenderTable(o.out, runID, results)
	}
	if o.publisher != nil {
		o.publisher.Publish(runID, results)
	}
	if o.db != nil {
		if perr := store.Persist(ctx, o.db, o.config.Log, runID, results); perr != nil {
			o.config.Log.Error("Failed to persist run", "run_id", runID, "error", perr)
			metrics.RecordErrorDetails("store.persist", perr)
		}
	}
	if err != nil {
		return NewRuntimeError(err)
	}

	run := &Run{ID: runID, Status: overallStatus(results), Results: results}
	o.mu.Lock()
	o.last = run
	o.mu.Unlock()

	o.config.Log.Info("Run completed", "run_id", runID, "status", run.Status)
	return nil
}

// LastRun returns the most recent completed pass, or nil.
func (o *Orchestrator) LastRun() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Orchestrator) Stop(ctx context.Context) error {
	o.config.Log.Info("Stopping op-orchestrator")
	if err := o.scheduler.Stop(); err != nil {
		return err
	}
	if err := o.scheduler.WaitForShutdown(ctx); err != nil {
		o.config.Log.Warn("Scheduler did not stop in time", "error", err)
	}
	if o.svc != nil {
		o.svc.Shutdown()
	}
	if o.db != nil {
		o.db.Close()
		o.db = nil
	}
	o.config.Log.Info("op-orchestrator stopped successfully")
	return nil
}

func (o *Orchestrator) Stopped() bool {
	return o.scheduler.Stopped()
}

// leaseName identifies the catalog and suite selection a lease guards.
func leaseName(cfg *Config) string {
	name := filepath.Base(cfg.CatalogPath)
	if len(cfg.Suites) > 0 {
		name += ":" + strings.Join(cfg.Suites, ",")
	}
	return name
}

func overallStatus(results []types.SuiteResult) types.Status {
	if len(results) == 0 {
		return types.StatusSkip
	}
	statuses := make([]types.Status, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	return types.WorstStatus(statuses...)
}

// CatalogExecutor builds the configured suites from a catalog and runs them.
type CatalogExecutor struct {
	Catalog *catalog.Catalog
	Config  *Config
}

func (e *CatalogExecutor) Execute(ctx context.Context, runID string) ([]types.SuiteResult, error) {
	cfg := e.Config
	events := reporting.NewJSONSink(cfg.LogDir, runID, cfg.Log)
	defer func() {
		if err := events.Close(); err != nil {
			cfg.Log.Warn("Failed to close events file", "err", err)
		}
	}()
	listeners := []listener.Listener{
		listener.NewLog(cfg.Log),
		metrics.NewListener(runID),
		reporting.NewTextSink(cfg.LogDir, runID, cfg.Log),
		events,
	}
	if cfg.ShowProgress {
		progress := listener.NewProgress(cfg.Log, cfg.ProgressInterval)
		defer progress.Stop()
		listeners = append(listeners, progress)
	}

	suites, err := e.Catalog.Build(catalog.BuildConfig{
		Log:            cfg.Log,
		RunID:          runID,
		Suites:         cfg.Suites,
		Groups:         cfg.Groups,
		Loops:          cfg.Loops,
		StopOnFail:     cfg.StopOnFail,
		DefaultTimeout: cfg.DefaultTimeout,
		WorkDir:        cfg.WorkDir,
		Listeners:      listeners,
	})
	if err != nil {
		return nil, err
	}

	var errs []error
	results := make([]types.SuiteResult, 0, len(suites))
	for _, outcome := range runner.RunSuites(ctx, suites, cfg.MaxParallel) {
		results = append(results, outcome.Result)
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("suite %s: %w", outcome.Suite, outcome.Err))
		}
	}
	return results, errors.Join(errs...)
}
