package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	orchestrator "github.com/ethereum-optimism/infra/op-orchestrator"
	"github.com/ethereum-optimism/infra/op-orchestrator/exitcodes"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

func TestExitCode(t *testing.T) {
	failed := &orchestrator.Run{ID: "run-1", Results: []types.SuiteResult{{Name: "smoke", Status: types.StatusFail}}}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitcodes.Success},
		{"test failure", orchestrator.NewTestFailureError(failed), exitcodes.TestFailure},
		{"runtime error", orchestrator.NewRuntimeError(errors.New("bad catalog")), exitcodes.RuntimeErr},
		{"wrapped runtime error", fmt.Errorf("failed to start: %w", orchestrator.NewRuntimeError(errors.New("defect"))), exitcodes.RuntimeErr},
		{"joined test failure", errors.Join(errors.New("stop"), orchestrator.NewTestFailureError(failed)), exitcodes.TestFailure},
		{"unclassified", errors.New("boom"), exitcodes.TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
