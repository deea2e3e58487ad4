package runner

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// runTest executes a test once per row of its data table.
func (r *SuiteRunner) runTest(ctx context.Context, loop int, t *types.TestDescriptor) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", t.Name))
	defer span.End()

	if missing := r.missingDependency(t.Dependencies); missing != "" {
		r.skipTest(loop, t.Name, t.Importance, t.BugRef, fmt.Sprintf("dependency %s has not passed", missing))
		span.SetAttributes(attribute.String("status", types.StatusSkip.String()))
		return nil
	}

	rows := t.Data.Iterations()
	if rows == 0 {
		r.log.Debug("Test has an empty data table", "test", t.Name)
	}
	allPassed := rows > 0
	for row := 0; row < rows; row++ {
		status, err := r.runTestRow(ctx, loop, row, rows, t)
		if err != nil {
			return err
		}
		allPassed = allPassed && status == types.StatusPass
	}
	r.passed[t.Name] = allPassed
	return nil
}

func (r *SuiteRunner) missingDependency(deps []string) string {
	for _, dep := range deps {
		if !r.passed[dep] {
			return dep
		}
	}
	return ""
}

func (r *SuiteRunner) runTestRow(ctx context.Context, loop, row, rows int, t *types.TestDescriptor) (types.Status, error) {
	c := r.ctx
	info := r.beginRow(loop, row, t.Name, t.Importance)
	params, paramErr := ResolveParams(t.Data, row, nil, 0, nil)
	if paramErr == nil {
		c.params = params
	}
	r.events.TestStarted(info)
	start := time.Now()

	if err := r.invokeHook(types.PhaseBeforeTest, types.HookInfo{Test: t.Name}); err != nil {
		r.testException(info, fmt.Errorf("before-test hook: %w", err))
	}

	var (
		v     Verdict
		units []types.UnitSummary
	)
	switch {
	case paramErr != nil:
		v = Verdict{Status: types.StatusFail, Diagnostic: fmt.Sprintf("parameter resolution: %v", paramErr)}
	case t.HasUnits():
		pre, preReason := c.Status(), c.Reason()
		c.resetOutcome()
		for _, u := range t.Units {
			res, err := r.runUnit(ctx, unitRun{
				loop:          loop,
				owner:         t.Name,
				name:          u.Name,
				unit:          u,
				global:        t.Data,
				globalRow:     row,
				importance:    t.Importance,
				dropRemaining: t.DropRemainingOnFailure,
			})
			units = append(units, res.summaries...)
			if err != nil {
				return types.StatusFail, err
			}
			if res.drop {
				break
			}
		}
		v = aggregate(pre, preReason, units, t.KnownToFail)
	default:
		if t.Body == nil {
			return types.StatusFail, fmt.Errorf("%w: test %s has no executable", ErrEngineDefect, t.Name)
		}
		c.SetKnownToFail(t.KnownToFail, t.BugRef)
		thrown := runWithTimeout(ctx, t.Timeout, t.Body, c, r.log)
		ktf, _ := c.KnownToFail()
		v = Classify(Outcome{
			Expected:    t.Expected,
			Err:         thrown,
			Current:     c.Status(),
			KnownToFail: ktf,
		})
	}
	c.finalize(v)

	if err := r.invokeHook(types.PhaseAfterTest, types.HookInfo{Test: t.Name}); err != nil {
		r.testException(info, fmt.Errorf("after-test hook: %w", err))
	}

	return r.finishRow(info, rows, t.BugRef, start, units), nil
}

// aggregate derives a test's status from its units: the worst unit status,
// then the test level known-to-fail mapping.
func aggregate(pre types.Status, preReason string, units []types.UnitSummary, knownToFail bool) Verdict {
	worst, diagnostic := pre, preReason
	for _, u := range units {
		if u.Status.Rank() > worst.Rank() {
			worst = u.Status
			diagnostic = fmt.Sprintf("%s: %s", u.Name, u.Diagnostic)
		}
	}
	v := Classify(Outcome{Current: worst, KnownToFail: knownToFail})
	if v.Diagnostic == "" {
		v.Diagnostic = diagnostic
	}
	return v
}

func (r *SuiteRunner) beginRow(loop, row int, name string, importance types.Importance) types.TestInfo {
	c := r.ctx
	c.resetOutcome()
	c.test = name
	c.unit = ""
	c.parameterIndex = row
	c.unitParameterIndex = 0
	c.params = make(map[string]string)
	return types.TestInfo{
		Suite:      r.cfg.Name,
		Name:       name,
		Loop:       loop,
		Row:        row,
		Importance: importance,
	}
}

// finishRow records the current status as the outcome of one test row.
func (r *SuiteRunner) finishRow(info types.TestInfo, rows int, bugRef string, start time.Time, units []types.UnitSummary) types.Status {
	c := r.ctx
	status := c.Status()
	if _, ref := c.KnownToFail(); ref != "" {
		bugRef = ref
	}
	c.tests.Record(rowName(info.Name, info.Row, rows), status, info.Importance)

	record := types.TestRecord{
		Suite:      r.cfg.Name,
		Name:       info.Name,
		Loop:       info.Loop,
		Row:        info.Row,
		Status:     status,
		Duration:   time.Since(start),
		Importance: info.Importance,
		BugRef:     bugRef,
		Units:      units,
	}
	if status != types.StatusPass {
		record.Diagnostic = c.Reason()
	}
	r.records = append(r.records, record)
	r.events.TestFinished(record)
	c.resetOutcome()
	c.test = ""
	return status
}

// skipTest records a test that was not executed.
func (r *SuiteRunner) skipTest(loop int, name string, importance types.Importance, bugRef, reason string) {
	info := r.beginRow(loop, 0, name, importance)
	r.events.TestStarted(info)
	r.ctx.SetStatus(types.StatusSkip, reason)
	r.log.Info("Skipping test", "test", name, "reason", reason)
	r.finishRow(info, 1, bugRef, time.Now(), nil)
	r.passed[name] = false
}
