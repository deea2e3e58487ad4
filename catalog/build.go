package catalog

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/discovery"
	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/matcher"
	"github.com/ethereum-optimism/infra/op-orchestrator/runner"
	"github.com/ethereum-optimism/infra/op-orchestrator/steps"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// BuildConfig carries run-wide settings applied on top of the catalog.
type BuildConfig struct {
	Log   log.Logger
	RunID string
	// Suites restricts the build to the named suites. Empty builds all.
	Suites []string
	// Groups overrides every suite's group selection when set.
	Groups []string
	// Loops overrides every suite's loop count when positive.
	Loops int
	// StopOnFail enables stop-on-fail for every suite.
	StopOnFail     bool
	DefaultTimeout time.Duration
	// WorkDir is used by suites that declare none.
	WorkDir   string
	Listeners []listener.Listener
	Matcher   *matcher.Matcher
}

// Build resolves every selected suite into a runner configuration. Each suite
// gets its own registry with the built-in steps, so descriptors are never
// shared between suites. Configuration errors of all suites are returned
// together and nothing is built when there are any.
func (c *Catalog) Build(cfg BuildConfig) ([]runner.SuiteConfig, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	for _, name := range cfg.Suites {
		if _, ok := c.Suite(name); !ok {
			return nil, fmt.Errorf("unknown suite %s", name)
		}
	}

	var (
		out  []runner.SuiteConfig
		errs []error
	)
	for _, s := range c.Suites {
		if len(cfg.Suites) > 0 && !slices.Contains(cfg.Suites, s.Name) {
			continue
		}
		suite, err := c.buildSuite(s, cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("suite %s: %w", s.Name, err))
			continue
		}
		out = append(out, suite)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Catalog) buildSuite(s SuiteSpec, cfg BuildConfig) (runner.SuiteConfig, error) {
	logger := cfg.Log.New("suite", s.Name)
	timeout := cfg.DefaultTimeout
	if s.Timeout != nil {
		timeout = *s.Timeout
	}
	shell := steps.Shell{Dir: s.WorkDir, Env: s.Env}
	if shell.Dir == "" {
		shell.Dir = cfg.WorkDir
	}

	reg := discovery.NewRegistry(discovery.Config{
		Log:            logger,
		Matcher:        cfg.Matcher,
		DefaultTimeout: timeout,
	})
	if err := (steps.Library{Shell: shell}).Register(reg); err != nil {
		return runner.SuiteConfig{}, err
	}

	var errs []error
	for name, table := range c.DataProviders {
		if err := reg.RegisterDataProvider(name, table); err != nil {
			errs = append(errs, err)
		}
	}
	tests, scenarios := c.resolve(s)
	for _, t := range tests {
		desc, err := testDescriptor(t, shell)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := reg.RegisterTest(desc); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return runner.SuiteConfig{}, errors.Join(errs...)
	}

	groups := s.Groups
	if len(cfg.Groups) > 0 {
		groups = cfg.Groups
	}
	selected, testErr := reg.Tests(groups)
	bound, scenarioErr := reg.Scenarios(scenarioDescriptors(scenarios), groups)
	if err := errors.Join(testErr, scenarioErr); err != nil {
		return runner.SuiteConfig{}, err
	}

	loops := s.Loops
	if cfg.Loops > 0 {
		loops = cfg.Loops
	}
	logger.Debug("Built suite", "tests", len(selected), "scenarios", len(bound), "groups", groups, "loops", loops)
	return runner.SuiteConfig{
		Name:       s.Name,
		RunID:      cfg.RunID,
		Tests:      selected,
		Scenarios:  bound,
		Hooks:      hooks(s.Hooks, shell),
		LoopCount:  loops,
		StopOnFail: s.StopOnFail || cfg.StopOnFail,
		Listeners:  cfg.Listeners,
		Log:        cfg.Log,
	}, nil
}

func testDescriptor(t TestSpec, shell steps.Shell) (*types.TestDescriptor, error) {
	if t.Command != "" && len(t.Units) > 0 {
		return nil, types.NewConfigError(t.Name, "a test declares either a command or units, not both")
	}
	desc := &types.TestDescriptor{
		Name:                   t.Name,
		Description:            t.Description,
		DeclaredIn:             t.Namespace,
		Skip:                   t.Skip,
		Sequence:               t.Sequence,
		Groups:                 t.Groups,
		KnownToFail:            t.KnownToFail,
		BugRef:                 t.BugRef,
		Expected:               expected(t.Expected),
		Importance:             t.Importance,
		Dependencies:           t.DependsOn,
		DropRemainingOnFailure: t.DropRemainingOnFailure,
		Timeout:                duration(t.Timeout),
		DataProviderName:       t.DataProvider,
		Data:                   t.Data,
	}
	if t.Command != "" {
		desc.Body = shell.Command(t.Command)
	}
	for _, u := range t.Units {
		unit := &types.UnitDescriptor{
			Name:                   u.Name,
			Skip:                   u.Skip,
			Sequence:               u.Sequence,
			Groups:                 u.Groups,
			KnownToFail:            u.KnownToFail,
			BugRef:                 u.BugRef,
			Expected:               expected(u.Expected),
			Importance:             u.Importance,
			DropRemainingOnFailure: u.DropRemainingOnFailure,
			Timeout:                duration(u.Timeout),
			DataProviderName:       u.DataProvider,
			Data:                   u.Data,
		}
		if u.Command != "" {
			unit.Body = shell.Command(u.Command)
		}
		desc.Units = append(desc.Units, unit)
	}
	return desc, nil
}

func scenarioDescriptors(specs []ScenarioSpec) []*types.Scenario {
	out := make([]*types.Scenario, 0, len(specs))
	for _, s := range specs {
		sc := &types.Scenario{
			Description:            s.Description,
			IsBackground:           s.Background,
			Groups:                 s.Groups,
			Examples:               s.Examples,
			Importance:             s.Importance,
			KnownToFail:            s.KnownToFail,
			BugRef:                 s.BugRef,
			DropRemainingOnFailure: s.DropRemainingOnFailure,
		}
		for _, step := range s.Steps {
			sc.Steps = append(sc.Steps, &types.Step{
				Keyword: step.Keyword,
				Text:    step.Text,
				Table:   step.Table,
				Params:  step.Params,
			})
		}
		out = append(out, sc)
	}
	return out
}

func hooks(h HookSpec, shell steps.Shell) types.Hooks {
	hook := func(cmdline string) types.Hook {
		if cmdline == "" {
			return nil
		}
		return shell.Hook(cmdline)
	}
	return types.Hooks{
		BeforeSuite:     hook(h.BeforeSuite),
		AfterSuite:      hook(h.AfterSuite),
		BeforeTest:      hook(h.BeforeTest),
		AfterTest:       hook(h.AfterTest),
		BeforeUnit:      hook(h.BeforeUnit),
		AfterUnit:       hook(h.AfterUnit),
		AfterFailedUnit: hook(h.AfterFailedUnit),
	}
}

func expected(e *ExpectedSpec) types.ExpectedException {
	if e == nil {
		return types.ExpectedException{}
	}
	return types.ExpectedException{Kinds: e.Kinds, MessageMatch: e.Message, Enforce: e.Enforce}
}

func duration(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}
