// Package discovery is the explicit registration point for tests, step
// implementations and data providers. It resolves group membership and
// execution order once, before a suite runs, and reports configuration errors
// for everything it cannot bind.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/matcher"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Registry holds registered descriptors for one suite.
type Registry struct {
	config Config

	mu        sync.RWMutex
	tests     []*types.TestDescriptor
	testNames map[string]bool
	steps     map[string]*types.UnitDescriptor
	providers map[string]*types.DataTable
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
	// Matcher evaluates group patterns. Defaults to the shared matcher.
	Matcher *matcher.Matcher
	// DefaultTimeout applies to tests and units that declare none.
	DefaultTimeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Matcher == nil {
		cfg.Matcher = matcher.Default()
	}
	return &Registry{
		config:    cfg,
		testNames: make(map[string]bool),
		steps:     make(map[string]*types.UnitDescriptor),
		providers: make(map[string]*types.DataTable),
	}
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// RegisterTest adds a test. Names are unique within a registry.
func (r *Registry) RegisterTest(t *types.TestDescriptor) error {
	if t == nil || t.Name == "" {
		return types.NewConfigError("", "test must have a name")
	}
	if !t.HasUnits() && t.Body == nil {
		return types.NewConfigError(t.Name, "test has neither a body nor units")
	}
	seen := make(map[string]bool, len(t.Units))
	for i, u := range t.Units {
		if u == nil || u.Body == nil {
			return types.NewConfigError(t.Name, "unit %d has no body", i)
		}
		if seen[u.Name] {
			return types.NewConfigError(t.Name, "duplicate unit %q", u.Name)
		}
		seen[u.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.testNames[t.Name] {
		return types.NewConfigError(t.Name, "test already registered")
	}
	r.testNames[t.Name] = true
	r.tests = append(r.tests, t)
	return nil
}

// RegisterStep binds a step implementation to a pattern. The pattern is
// normalized, so `I run "make"` and `I run ""` register the same step.
func (r *Registry) RegisterStep(pattern string, unit *types.UnitDescriptor) error {
	normalized, _ := NormalizePattern(pattern)
	if normalized == "" {
		return types.NewConfigError(pattern, "step pattern is empty")
	}
	if unit == nil || unit.Body == nil {
		return types.NewConfigError(normalized, "step has no body")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[normalized]; ok {
		return types.NewConfigError(normalized, "step pattern already registered")
	}
	bound := *unit
	bound.Pattern = normalized
	if bound.Name == "" {
		bound.Name = normalized
	}
	r.steps[normalized] = &bound
	return nil
}

// RegisterDataProvider makes a table available to descriptors by name.
func (r *Registry) RegisterDataProvider(name string, table *types.DataTable) error {
	if name == "" {
		return types.NewConfigError("", "data provider must have a name")
	}
	if err := table.Validate(); err != nil {
		return &types.ConfigError{Descriptor: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return types.NewConfigError(name, "data provider already registered")
	}
	r.providers[name] = table
	return nil
}

// Step looks up the implementation for step text and returns the quoted
// literals of the text as arg0..argN.
func (r *Registry) Step(text string) (*types.UnitDescriptor, map[string]string, bool) {
	pattern, args := NormalizePattern(text)
	r.mu.RLock()
	unit, ok := r.steps[pattern]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	return unit, argParams(args), true
}

// Tests returns copies of the registered tests that belong to groups, with
// skipped tests and non-member units removed, data providers bound and in
// execution order. All configuration errors are reported together.
func (r *Registry) Tests(groups []string) ([]*types.TestDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		out  []*types.TestDescriptor
		errs []error
	)
	for _, t := range r.tests {
		if t.Skip {
			r.config.Log.Debug("Skipping test", "test", t.Name)
			continue
		}
		if !r.belongs(t.Groups, groups) {
			continue
		}
		resolved, err := r.resolveTest(t, groups)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, resolved)
	}
	errs = append(errs, r.checkDependencies(out)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	ordered := orderTests(out)
	r.config.Log.Debug("Resolved tests", "groups", groups, "registered", len(r.tests), "selected", len(ordered))
	return ordered, nil
}

func (r *Registry) resolveTest(t *types.TestDescriptor, groups []string) (*types.TestDescriptor, error) {
	cp := *t
	data, err := r.bindData(t.Name, t.DataProviderName, t.Data)
	if err != nil {
		return nil, err
	}
	cp.Data = data
	if cp.Timeout == 0 && !cp.HasUnits() {
		cp.Timeout = r.config.DefaultTimeout
	}

	var errs []error
	cp.Units = nil
	for _, u := range t.Units {
		if u.Skip {
			continue
		}
		unitGroups := u.Groups
		if len(unitGroups) == 0 {
			unitGroups = t.Groups
		}
		if !r.belongs(unitGroups, groups) {
			continue
		}
		ucp := *u
		name := t.Name + "/" + u.Name
		local, err := r.bindData(name, u.DataProviderName, u.Data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := checkReferences(name, local, cp.Data); err != nil {
			errs = append(errs, err)
		}
		ucp.Data = local
		if ucp.Timeout == 0 {
			ucp.Timeout = r.config.DefaultTimeout
		}
		cp.Units = append(cp.Units, &ucp)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if t.HasUnits() && !cp.HasUnits() {
		// every unit was filtered out; the test runs as an empty pass
		r.config.Log.Debug("All units of test filtered out", "test", t.Name)
		cp.Body = noop
	}
	orderUnits(cp.Units)
	return &cp, nil
}

// bindData returns the descriptor's table, looking up the named provider when
// one is given.
func (r *Registry) bindData(descriptor, provider string, inline *types.DataTable) (*types.DataTable, error) {
	table := inline
	if provider != "" {
		found, ok := r.providers[provider]
		if !ok {
			return nil, types.NewConfigError(descriptor, "data provider %q is not registered", provider)
		}
		table = found
	}
	if err := table.Validate(); err != nil {
		return nil, &types.ConfigError{Descriptor: descriptor, Err: err}
	}
	return table, nil
}

// checkReferences verifies every whole-cell <col> reference in local names a
// column of global.
func checkReferences(descriptor string, local, global *types.DataTable) error {
	var errs []error
	for _, col := range local.Columns() {
		values, _ := local.Column(col)
		for row, v := range values {
			ref, ok := types.Reference(v)
			if !ok {
				continue
			}
			if _, found := global.Column(ref); !found {
				errs = append(errs, types.NewConfigError(descriptor, "column %q row %d references unknown column <%s>", col, row, ref))
			}
		}
	}
	return errors.Join(errs...)
}

// checkDependencies reports dependencies on unregistered tests and dependency
// cycles. A dependency on a registered test that was filtered out is allowed;
// the dependent test is skipped at run time.
func (r *Registry) checkDependencies(tests []*types.TestDescriptor) []error {
	deps := make(map[string][]string, len(r.tests))
	for _, t := range r.tests {
		deps[t.Name] = t.Dependencies
	}
	var errs []error
	for _, t := range tests {
		for _, dep := range t.Dependencies {
			if !r.testNames[dep] {
				errs = append(errs, types.NewConfigError(t.Name, "depends on unknown test %q", dep))
			}
		}
		if err := checkCircularDependency(t.Name, t.Dependencies, deps, make(map[string]bool)); err != nil {
			errs = append(errs, types.NewConfigError(t.Name, "%w", err))
		}
	}
	return errs
}

func checkCircularDependency(current string, dependsOn []string, deps map[string][]string, visited map[string]bool) error {
	if visited[current] {
		return fmt.Errorf("circular dependency detected at test %s", current)
	}
	visited[current] = true
	defer delete(visited, current)

	for _, dep := range dependsOn {
		if err := checkCircularDependency(dep, deps[dep], deps, visited); err != nil {
			return err
		}
	}
	return nil
}

var noop = types.ExecutableFunc(func(_ context.Context, _ types.TestContext) error { return nil })
