package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-orchestrator/flags"
	"github.com/ethereum-optimism/infra/op-orchestrator/service"
)

// Config holds the application configuration
type Config struct {
	CatalogPath      string
	Suites           []string      // Suites to run, all when empty
	Groups           []string      // Group references overriding each suite's selection
	Loops            int           // Loop count override, 0 keeps the catalog's value
	StopOnFail       bool          // Forces stop-on-fail for every suite
	MaxParallel      int           // Maximum number of suites running at once (0 = all)
	DefaultTimeout   time.Duration // Timeout for units that declare none
	WorkDir          string        // Working directory for suites that declare none
	LogDir           string        // Directory to store suite summaries
	RunInterval      time.Duration // Interval between runs
	RunOnce          bool          // Exit after one run
	DBURL            string        // Postgres connection string, persistence is off when empty
	RedisURL         string        // Redis URL for the run lease, no lease when empty
	LeaseTTL         time.Duration
	ShowProgress     bool
	ProgressInterval time.Duration
	Service          service.Config
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	catalogPath := ctx.String(flags.Catalog.Name)
	if catalogPath == "" {
		return nil, errors.New("catalog path is required")
	}
	absCatalog, err := filepath.Abs(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for catalog '%s': %w", catalogPath, err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	cfg := &Config{
		CatalogPath:      absCatalog,
		Suites:           ctx.StringSlice(flags.Suites.Name),
		Groups:           ctx.StringSlice(flags.Groups.Name),
		Loops:            ctx.Int(flags.Loops.Name),
		StopOnFail:       ctx.Bool(flags.StopOnFail.Name),
		MaxParallel:      ctx.Int(flags.MaxParallel.Name),
		DefaultTimeout:   ctx.Duration(flags.DefaultTimeout.Name),
		WorkDir:          ctx.String(flags.WorkDir.Name),
		LogDir:           ctx.String(flags.LogDir.Name),
		RunInterval:      ctx.Duration(flags.RunInterval.Name),
		DBURL:            ctx.String(flags.DBURL.Name),
		RedisURL:         ctx.String(flags.RedisURL.Name),
		LeaseTTL:         ctx.Duration(flags.LeaseTTL.Name),
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Service: service.Config{
			APIHost:        ctx.String(flags.APIAddr.Name),
			APIPort:        ctx.Int(flags.APIPort.Name),
			MetricsEnabled: metricsCfg.Enabled,
			MetricsHost:    metricsCfg.ListenAddr,
			MetricsPort:    metricsCfg.ListenPort,
		},
		Log: log,
	}

	if path := ctx.String(flags.Profile.Name); path != "" {
		profile, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		profile.Apply(ctx, cfg)
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}

	cfg.RunOnce = cfg.RunInterval == 0
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	cfg.LogDir, err = filepath.Abs(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", cfg.LogDir, err)
	}
	if cfg.WorkDir != "" {
		cfg.WorkDir, err = filepath.Abs(cfg.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", cfg.WorkDir, err)
		}
	}
	return cfg, nil
}

// Check rejects values no run could use.
func (c *Config) Check() error {
	var errs []error
	if c.Loops < 0 {
		errs = append(errs, fmt.Errorf("loops must not be negative: %d", c.Loops))
	}
	if c.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("max-parallel must not be negative: %d", c.MaxParallel))
	}
	if c.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("default-timeout must not be negative: %s", c.DefaultTimeout))
	}
	if c.RedisURL != "" && c.LeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("lease-ttl must be positive when redis-url is set: %s", c.LeaseTTL))
	}
	if c.RunInterval < 0 {
		errs = append(errs, fmt.Errorf("run-interval must not be negative: %s", c.RunInterval))
	}
	return errors.Join(errs...)
}
