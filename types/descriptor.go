package types

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// WildcardGroup is implicitly a member of every descriptor's group set.
const WildcardGroup = "*"

// TestContext is the view of the running suite given to test bodies and hooks.
type TestContext interface {
	// SetStatus records an outcome. Writes that would improve the current
	// status are ignored.
	SetStatus(status Status, reason string)
	Status() Status
	// SetKnownToFail marks the running test or unit as known to fail.
	SetKnownToFail(ktf bool, bugRef string)
	KnownToFail() (bool, string)

	// Param returns a resolved parameter for the current data row.
	Param(name string) (string, bool)
	Params() map[string]string
	ParameterIndex() int
	UnitParameterIndex() int

	// Get, Set and Delete access the suite-scoped key/value store.
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)

	Suite() string
	Test() string
	Unit() string
	Logger() log.Logger
}

// Executable is the callable behind a test, unit or step.
type Executable interface {
	Execute(ctx context.Context, tc TestContext) error
}

// ExecutableFunc adapts a function to Executable.
type ExecutableFunc func(ctx context.Context, tc TestContext) error

func (f ExecutableFunc) Execute(ctx context.Context, tc TestContext) error {
	return f(ctx, tc)
}

// TestDescriptor describes one declared test case.
type TestDescriptor struct {
	Name        string
	Description string
	// DeclaredIn overrides the namespace derived from Name.
	DeclaredIn string
	Skip       bool
	Sequence   int
	Groups     []string

	KnownToFail bool
	BugRef      string
	Expected    ExpectedException
	Importance  Importance

	Dependencies           []string
	DropRemainingOnFailure bool
	Timeout                time.Duration

	// DataProviderName names a registered data table; Data is bound by discovery.
	DataProviderName string
	Data             *DataTable

	Units []*UnitDescriptor
	Body  Executable
}

// Namespace returns the declaring namespace used to scope Sequence ordering.
func (t *TestDescriptor) Namespace() string {
	if t.DeclaredIn != "" {
		return t.DeclaredIn
	}
	return namespaceOf(t.Name)
}

// HasUnits reports whether the test is made of units rather than a single body.
func (t *TestDescriptor) HasUnits() bool {
	return len(t.Units) > 0
}

// UnitDescriptor describes one sub-step of a test case or one step implementation.
type UnitDescriptor struct {
	Name string
	// Pattern is the normalized step text a BDD step is matched against.
	Pattern  string
	Skip     bool
	Sequence int
	Groups   []string

	KnownToFail bool
	BugRef      string
	Expected    ExpectedException
	Importance  Importance

	DropRemainingOnFailure bool
	Timeout                time.Duration

	DataProviderName string
	Data             *DataTable

	Body Executable
}

func namespaceOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return ""
}
