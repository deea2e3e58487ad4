package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Persist writes one run and every suite, test row and unit row of it in a
// single transaction.
func Persist(ctx context.Context, conn Connection, logger log.Logger, runID string, results []types.SuiteResult) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	logger.Info("Inserting run into DB", "run_id", runID, "suites", len(results))
	if err := tx.InsertRun(ctx, Run{
		ID:        runID,
		StartedAt: runStart(results),
		Status:    runStatus(results).String(),
	}); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range results {
		suiteID, err := tx.InsertSuite(ctx, Suite{
			RunID:    runID,
			Name:     r.Name,
			Status:   r.Status.String(),
			Loops:    r.Loops,
			Aborted:  r.Aborted,
			Passed:   r.Tests.Pass,
			Failed:   r.Tests.Fail,
			Skipped:  r.Tests.Skip,
			KTF:      r.Tests.KTF,
			Runtime:  r.Duration().Seconds(),
			Finished: r.Finish,
		})
		if err != nil {
			return fmt.Errorf("failed to insert suite %s: %w", r.Name, err)
		}

		for _, rec := range r.Records {
			testID, err := tx.InsertTestRecord(ctx, TestRecord{
				SuiteID:    suiteID,
				Name:       rec.Name,
				Loop:       rec.Loop,
				Row:        rec.Row,
				Status:     rec.Status.String(),
				Importance: rec.Importance.String(),
				BugRef:     rec.BugRef,
				Runtime:    rec.Duration.Seconds(),
				Message:    rec.Diagnostic,
			})
			if err != nil {
				return fmt.Errorf("failed to insert test record: %w", err)
			}
			for _, u := range rec.Units {
				if err := tx.InsertUnitRecord(ctx, UnitRecord{
					TestID:  testID,
					Name:    u.Name,
					Row:     u.UnitRow,
					Status:  u.Status.String(),
					Runtime: u.Duration.Seconds(),
					Message: u.Diagnostic,
				}); err != nil {
					return fmt.Errorf("failed to insert unit record: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func runStart(results []types.SuiteResult) time.Time {
	var start time.Time
	for _, r := range results {
		if start.IsZero() || (!r.Start.IsZero() && r.Start.Before(start)) {
			start = r.Start
		}
	}
	if start.IsZero() {
		return time.Now()
	}
	return start
}

func runStatus(results []types.SuiteResult) types.Status {
	statuses := make([]types.Status, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	if len(statuses) == 0 {
		return types.StatusSkip
	}
	return types.WorstStatus(statuses...)
}
