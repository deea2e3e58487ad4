package types

// Hook is a lifecycle callable. It receives the running suite's context.
type Hook func(tc TestContext) error

// HookPhase identifies when a hook runs.
type HookPhase string

const (
	PhaseBeforeSuite     HookPhase = "before-suite"
	PhaseAfterSuite      HookPhase = "after-suite"
	PhaseBeforeTest      HookPhase = "before-test"
	PhaseAfterTest       HookPhase = "after-test"
	PhaseBeforeUnit      HookPhase = "before-unit"
	PhaseAfterUnit       HookPhase = "after-unit"
	PhaseAfterFailedUnit HookPhase = "after-failed-unit"
)

// Hooks holds the optional lifecycle callables in effect for a suite.
// Discovery resolves which implementation wins; the runner only calls them.
type Hooks struct {
	BeforeSuite     Hook
	AfterSuite      Hook
	BeforeTest      Hook
	AfterTest       Hook
	BeforeUnit      Hook
	AfterUnit       Hook
	AfterFailedUnit Hook
}

// For returns the hook registered for a phase, or nil.
func (h Hooks) For(phase HookPhase) Hook {
	switch phase {
	case PhaseBeforeSuite:
		return h.BeforeSuite
	case PhaseAfterSuite:
		return h.AfterSuite
	case PhaseBeforeTest:
		return h.BeforeTest
	case PhaseAfterTest:
		return h.AfterTest
	case PhaseBeforeUnit:
		return h.BeforeUnit
	case PhaseAfterUnit:
		return h.AfterUnit
	case PhaseAfterFailedUnit:
		return h.AfterFailedUnit
	default:
		return nil
	}
}
