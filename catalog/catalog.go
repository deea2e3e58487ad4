// Package catalog loads the declarative YAML description of suites and turns it
// into runnable suite configurations.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Catalog is the root of a catalog file.
type Catalog struct {
	DataProviders map[string]*types.DataTable `yaml:"data_providers,omitempty"`
	Suites        []SuiteSpec                 `yaml:"suites"`
}

// SuiteSpec declares one suite.
type SuiteSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Inherits lists suites whose tests and scenarios are included in this one.
	Inherits   []string       `yaml:"inherits,omitempty"`
	Groups     []string       `yaml:"groups,omitempty"`
	Loops      int            `yaml:"loops,omitempty"`
	StopOnFail bool           `yaml:"stop_on_fail,omitempty"`
	WorkDir    string         `yaml:"workdir,omitempty"`
	Env        []string       `yaml:"env,omitempty"`
	Timeout    *time.Duration `yaml:"default_timeout,omitempty"`
	Hooks      HookSpec       `yaml:"hooks,omitempty"`
	Tests      []TestSpec     `yaml:"tests,omitempty"`
	Scenarios  []ScenarioSpec `yaml:"scenarios,omitempty"`
}

// HookSpec holds shell commands run at each lifecycle phase.
type HookSpec struct {
	BeforeSuite     string `yaml:"before_suite,omitempty"`
	AfterSuite      string `yaml:"after_suite,omitempty"`
	BeforeTest      string `yaml:"before_test,omitempty"`
	AfterTest       string `yaml:"after_test,omitempty"`
	BeforeUnit      string `yaml:"before_unit,omitempty"`
	AfterUnit       string `yaml:"after_unit,omitempty"`
	AfterFailedUnit string `yaml:"after_failed_unit,omitempty"`
}

// ExpectedSpec declares the errors a test is expected to raise.
type ExpectedSpec struct {
	Kinds   []types.ExceptionKind `yaml:"kinds"`
	Message string                `yaml:"message,omitempty"`
	Enforce bool                  `yaml:"enforce,omitempty"`
}

// TestSpec declares a command test, either a single command or a list of units.
type TestSpec struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Namespace   string           `yaml:"namespace,omitempty"`
	Sequence    int              `yaml:"sequence,omitempty"`
	Groups      []string         `yaml:"groups,omitempty"`
	Skip        bool             `yaml:"skip,omitempty"`
	Importance  types.Importance `yaml:"importance,omitempty"`
	KnownToFail bool             `yaml:"known_to_fail,omitempty"`
	BugRef      string           `yaml:"bug_ref,omitempty"`
	Timeout     *time.Duration   `yaml:"timeout,omitempty"`
	Expected    *ExpectedSpec    `yaml:"expected,omitempty"`

	DropRemainingOnFailure bool     `yaml:"drop_remaining_on_failure,omitempty"`
	DependsOn              []string `yaml:"depends_on,omitempty"`

	Data         *types.DataTable `yaml:"data,omitempty"`
	DataProvider string           `yaml:"data_provider,omitempty"`

	Command string     `yaml:"command,omitempty"`
	Units   []UnitSpec `yaml:"units,omitempty"`
}

// UnitSpec declares one unit of a command test.
type UnitSpec struct {
	Name        string           `yaml:"name"`
	Sequence    int              `yaml:"sequence,omitempty"`
	Groups      []string         `yaml:"groups,omitempty"`
	Skip        bool             `yaml:"skip,omitempty"`
	Importance  types.Importance `yaml:"importance,omitempty"`
	KnownToFail bool             `yaml:"known_to_fail,omitempty"`
	BugRef      string           `yaml:"bug_ref,omitempty"`
	Timeout     *time.Duration   `yaml:"timeout,omitempty"`
	Expected    *ExpectedSpec    `yaml:"expected,omitempty"`

	DropRemainingOnFailure bool `yaml:"drop_remaining_on_failure,omitempty"`

	Data         *types.DataTable `yaml:"data,omitempty"`
	DataProvider string           `yaml:"data_provider,omitempty"`

	Command string `yaml:"command"`
}

// ScenarioSpec declares a BDD scenario.
type ScenarioSpec struct {
	Description string           `yaml:"description"`
	Background  bool             `yaml:"background,omitempty"`
	Groups      []string         `yaml:"groups,omitempty"`
	Importance  types.Importance `yaml:"importance,omitempty"`
	KnownToFail bool             `yaml:"known_to_fail,omitempty"`
	BugRef      string           `yaml:"bug_ref,omitempty"`

	DropRemainingOnFailure bool `yaml:"drop_remaining_on_failure,omitempty"`

	Examples *types.DataTable `yaml:"examples,omitempty"`
	Steps    []StepSpec       `yaml:"steps"`
}

// StepSpec is one line of a scenario.
type StepSpec struct {
	Keyword string            `yaml:"keyword"`
	Text    string            `yaml:"text"`
	Table   *types.DataTable  `yaml:"table,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	log.Debug("Reading catalog file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a catalog document. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks suite names and inheritance.
func (c *Catalog) Validate() error {
	if len(c.Suites) == 0 {
		return errors.New("catalog declares no suites")
	}
	suites := make(map[string]SuiteSpec, len(c.Suites))
	var errs []error
	for _, s := range c.Suites {
		if s.Name == "" {
			errs = append(errs, errors.New("suite without a name"))
			continue
		}
		if _, ok := suites[s.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate suite %s", s.Name))
			continue
		}
		suites[s.Name] = s
	}
	for _, s := range c.Suites {
		if err := checkCircularInheritance(s.Name, s.Inherits, suites, make(map[string]bool)); err != nil {
			errs = append(errs, fmt.Errorf("invalid inheritance: %w", err))
		}
	}
	return errors.Join(errs...)
}

// checkCircularInheritance detects missing and circular suite inheritance
func checkCircularInheritance(currentID string, inherits []string, suites map[string]SuiteSpec, visited map[string]bool) error {
	if visited[currentID] {
		return fmt.Errorf("circular inheritance detected at suite %s", currentID)
	}
	visited[currentID] = true
	defer delete(visited, currentID)

	for _, inheritedID := range inherits {
		inherited, exists := suites[inheritedID]
		if !exists {
			return fmt.Errorf("suite %s inherits from non-existent suite %s", currentID, inheritedID)
		}
		if err := checkCircularInheritance(inheritedID, inherited.Inherits, suites, visited); err != nil {
			return err
		}
	}
	return nil
}

// Suite returns the named suite.
func (c *Catalog) Suite(name string) (SuiteSpec, bool) {
	for _, s := range c.Suites {
		if s.Name == name {
			return s, true
		}
	}
	return SuiteSpec{}, false
}

// resolve returns the suite's tests and scenarios followed by those it
// inherits, depth first. Each inherited suite is included once.
func (c *Catalog) resolve(s SuiteSpec) ([]TestSpec, []ScenarioSpec) {
	seen := map[string]bool{s.Name: true}
	var (
		tests     []TestSpec
		scenarios []ScenarioSpec
		walk      func(SuiteSpec)
	)
	walk = func(cur SuiteSpec) {
		tests = append(tests, cur.Tests...)
		scenarios = append(scenarios, cur.Scenarios...)
		for _, name := range cur.Inherits {
			if seen[name] {
				continue
			}
			seen[name] = true
			if inherited, ok := c.Suite(name); ok {
				walk(inherited)
			}
		}
	}
	walk(s)
	return tests, scenarios
}
