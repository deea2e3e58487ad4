package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// runScenario executes a scenario once per example row. Background steps are
// run ahead of the scenario's own steps on every row.
func (r *SuiteRunner) runScenario(ctx context.Context, loop int, sc *types.Scenario) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("scenario %s", sc.Description))
	defer span.End()

	steps := make([]*types.Step, 0, len(r.background)+len(sc.Steps))
	steps = append(steps, r.background...)
	steps = append(steps, sc.Steps...)

	rows := sc.Examples.Iterations()
	for row := 0; row < rows; row++ {
		status, err := r.runScenarioRow(ctx, loop, row, rows, sc, steps)
		if err != nil {
			return err
		}
		sc.Outcomes = append(sc.Outcomes, status)
	}
	return nil
}

func (r *SuiteRunner) runScenarioRow(ctx context.Context, loop, row, rows int, sc *types.Scenario, steps []*types.Step) (types.Status, error) {
	c := r.ctx
	info := r.beginRow(loop, row, sc.Description, sc.Importance)
	params, paramErr := ResolveParams(sc.Examples, row, nil, 0, nil)
	if paramErr == nil {
		c.params = params
	}
	r.events.TestStarted(info)
	start := time.Now()

	if err := r.invokeHook(types.PhaseBeforeTest, types.HookInfo{Test: sc.Description}); err != nil {
		r.testException(info, fmt.Errorf("before-test hook: %w", err))
	}

	var (
		v     Verdict
		units []types.UnitSummary
	)
	if paramErr != nil {
		v = Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("parameter resolution: %v", paramErr)}
	} else {
		pre, preReason := c.Status(), c.Reason()
		c.resetOutcome()
		for _, step := range steps {
			res, err := r.runUnit(ctx, unitRun{
				loop:          loop,
				owner:         sc.Description,
				name:          stepName(step),
				unit:          step.Unit,
				global:        sc.Examples,
				globalRow:     row,
				local:         step.Table,
				inline:        step.Params,
				importance:    sc.Importance,
				dropRemaining: sc.DropRemainingOnFailure,
			})
			units = append(units, res.summaries...)
			if err != nil {
				return types.StatusFail, err
			}
			if res.drop {
				break
			}
		}
		v = aggregate(pre, preReason, units, sc.KnownToFail)
	}
	c.finalize(v)

	if err := r.invokeHook(types.PhaseAfterTest, types.HookInfo{Test: sc.Description}); err != nil {
		r.testException(info, fmt.Errorf("after-test hook: %w", err))
	}

	return r.finishRow(info, rows, sc.BugRef, start, units), nil
}

func stepName(step *types.Step) string {
	if step.Keyword == "" {
		return step.Text
	}
	return step.Keyword + " " + step.Text
}
