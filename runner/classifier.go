package runner

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-orchestrator/matcher"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

const (
	msgTimedOut        = "unit timed out"
	msgRequiredMissing = "exception was required but did not occur"
	msgKnownToFailPass = "known to fail but passed"
)

// Outcome is the input to Classify.
type Outcome struct {
	Expected types.ExpectedException
	// Err is the error returned or raised by the body, nil when it completed.
	Err         error
	Current     types.Status
	KnownToFail bool
}

// Verdict is the finalized status of one execution.
type Verdict struct {
	Status     types.Status
	Diagnostic string
}

// Classify turns the result of a body into a final status.
//
// The thrown error is checked against the expected exception declaration and
// merged into the current status without lowering it. The known-to-fail
// marker is applied last: an unexpected pass fails, a genuine failure is KTF.
func Classify(o Outcome) Verdict {
	v := classifyError(o)
	v.Status = types.WorstStatus(o.Current, v.Status)

	if o.KnownToFail {
		switch v.Status {
		case types.StatusPass:
			return Verdict{Status: types.StatusFail, Diagnostic: msgKnownToFailPass}
		case types.StatusFail:
			return Verdict{Status: types.StatusKTF, Diagnostic: v.Diagnostic}
		}
	}
	return v
}

func classifyError(o Outcome) Verdict {
	exp := o.Expected
	if o.Err == nil {
		if exp.Declared() && exp.Enforce && (o.Current == types.StatusPass || o.Current == types.StatusFail) {
			return Verdict{Status: types.StatusFail, Diagnostic: msgRequiredMissing}
		}
		return Verdict{Status: types.StatusPass}
	}

	kind := types.KindOf(o.Err)
	if kind == types.KindTimeout {
		return Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("%s: %v", msgTimedOut, o.Err)}
	}
	if !exp.Declared() {
		return Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("%s: %v", kind, o.Err)}
	}
	if !exp.Expects(kind) {
		return Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("expected one of %v but got %s: %v", exp.Kinds, kind, o.Err)}
	}
	if !matcher.MessageMatches(o.Err.Error(), exp.MessageMatch) {
		return Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("%s message %q does not match %q", kind, o.Err.Error(), exp.MessageMatch)}
	}
	return Verdict{Status: types.StatusPass}
}
