package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// RuntimeError represents an operational error that should lead to exit code 2:
// configuration errors, engine defects or an unreadable catalog.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a run in which at least one suite failed (exit code 1).
// It names the failed suites so callers need not walk the results again.
type TestFailureError struct {
	RunID  string
	Failed []string
	Total  int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: run %s: %d of %d suites failed: %s",
		e.RunID, len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}

// NewTestFailureError creates a TestFailureError listing the failed suites of run
func NewTestFailureError(run *Run) *TestFailureError {
	e := &TestFailureError{RunID: run.ID, Total: len(run.Results)}
	for _, r := range run.Results {
		if r.Status == types.StatusFail {
			e.Failed = append(e.Failed, r.Name)
		}
	}
	return e
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
