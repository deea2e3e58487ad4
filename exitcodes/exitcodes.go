// Package exitcodes defines the exit codes used by op-orchestrator.
package exitcodes

// * Success (0): every suite passed, was skipped or failed only known-to-fail tests
// * TestFailure (1): at least one suite failed
// * RuntimeErr (2): configuration errors, engine defects or panics
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
