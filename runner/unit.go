package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// unitRun is one unit or step bound to its position in the running test.
type unitRun struct {
	loop  int
	owner string
	name  string
	unit  *types.UnitDescriptor

	global    *types.DataTable
	globalRow int
	// local overrides the unit's own table, used for step tables
	local  *types.DataTable
	inline map[string]string

	importance    types.Importance
	dropRemaining bool
}

type unitResult struct {
	summaries []types.UnitSummary
	// drop tells the caller to skip the remaining units of the test
	drop bool
}

// runUnit executes a unit once per row of its local table, or once when it
// has none.
func (r *SuiteRunner) runUnit(ctx context.Context, u unitRun) (unitResult, error) {
	if u.unit == nil || u.unit.Body == nil {
		return unitResult{}, fmt.Errorf("%w: %s/%s has no executable", ErrEngineDefect, u.owner, u.name)
	}
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("unit %s", u.name))
	defer span.End()

	c := r.ctx
	testParams := c.params
	defer func() {
		c.params = testParams
		c.unit = ""
		c.unitParameterIndex = 0
	}()

	local := u.local
	if local.Empty() {
		local = u.unit.Data
	}
	rows := local.Iterations()
	importance := u.unit.Importance
	if importance == types.ImportanceUndefined {
		importance = u.importance
	}
	drop := u.dropRemaining || u.unit.DropRemainingOnFailure

	var res unitResult
	for row := 0; row < rows; row++ {
		failedBefore := c.units.Fail
		res.summaries = append(res.summaries, r.runUnitRow(ctx, u, local, row, rows, importance))
		if drop && c.units.Fail > failedBefore {
			r.log.Debug("Dropping remaining units after failure", "test", u.owner, "unit", u.name, "row", row)
			res.drop = true
			break
		}
	}
	return res, nil
}

func (r *SuiteRunner) runUnitRow(ctx context.Context, u unitRun, local *types.DataTable, row, rows int, importance types.Importance) types.UnitSummary {
	c := r.ctx
	c.unit = u.name
	c.unitParameterIndex = row
	params, paramErr := ResolveParams(u.global, u.globalRow, local, row, u.inline)
	if paramErr == nil {
		c.params = params
	}

	info := types.UnitInfo{
		Suite:   r.cfg.Name,
		Test:    u.owner,
		Name:    u.name,
		Loop:    u.loop,
		Row:     u.globalRow,
		UnitRow: row,
	}
	r.events.UnitStarted(info)
	start := time.Now()

	c.resetOutcome()
	c.SetKnownToFail(u.unit.KnownToFail, u.unit.BugRef)
	testInfo := types.TestInfo{Suite: r.cfg.Name, Name: u.owner, Loop: u.loop, Row: u.globalRow}
	if err := r.invokeHook(types.PhaseBeforeUnit, types.HookInfo{Test: u.owner, Unit: u.name}); err != nil {
		r.testException(testInfo, fmt.Errorf("before-unit hook for %s: %w", u.name, err))
	}

	var v Verdict
	if paramErr != nil {
		v = Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("parameter resolution: %v", paramErr)}
	} else {
		thrown := runWithTimeout(ctx, u.unit.Timeout, u.unit.Body, c, r.log)
		ktf, _ := c.KnownToFail()
		v = Classify(Outcome{
			Expected:    u.unit.Expected,
			Err:         thrown,
			Current:     c.Status(),
			KnownToFail: ktf,
		})
	}
	c.finalize(v)

	if err := r.invokeHook(types.PhaseAfterUnit, types.HookInfo{Test: u.owner, Unit: u.name}); err != nil {
		r.testException(testInfo, fmt.Errorf("after-unit hook for %s: %w", u.name, err))
	}
	if c.Status() == types.StatusFail {
		if err := r.invokeHook(types.PhaseAfterFailedUnit, types.HookInfo{Test: u.owner, Unit: u.name}); err != nil {
			r.testException(testInfo, fmt.Errorf("after-failed-unit hook for %s: %w", u.name, err))
		}
	}

	status := c.Status()
	_, bugRef := c.KnownToFail()
	if bugRef == "" {
		bugRef = u.unit.BugRef
	}
	c.units.Record(rowName(u.owner+"/"+u.name, row, rows), status, importance)

	summary := types.UnitSummary{
		Suite:      r.cfg.Name,
		Test:       u.owner,
		Name:       u.name,
		Loop:       u.loop,
		Row:        u.globalRow,
		UnitRow:    row,
		Status:     status,
		Duration:   time.Since(start),
		Importance: importance,
		BugRef:     bugRef,
	}
	if status != types.StatusPass {
		summary.Diagnostic = c.Reason()
	}
	r.events.UnitFinished(summary)
	c.resetOutcome()
	return summary
}
