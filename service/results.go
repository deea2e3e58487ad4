package service

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// RunSnapshot is the JSON view of the last completed run.
type RunSnapshot struct {
	RunID    string          `json:"run_id"`
	Status   types.Status    `json:"status"`
	Finished time.Time       `json:"finished"`
	Suites   []SuiteSnapshot `json:"suites"`
}

type SuiteSnapshot struct {
	Name     string          `json:"name"`
	Status   types.Status    `json:"status"`
	Duration string          `json:"duration"`
	Loops    int             `json:"loops"`
	Aborted  bool            `json:"aborted,omitempty"`
	Tests    CountSnapshot   `json:"tests"`
	Units    CountSnapshot   `json:"units"`
	Failures []types.Failure `json:"failures,omitempty"`
}

type CountSnapshot struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
	Skip int `json:"skip"`
	KTF  int `json:"ktf"`
}

func counts(c types.Counters) CountSnapshot {
	return CountSnapshot{Pass: c.Pass, Fail: c.Fail, Skip: c.Skip, KTF: c.KTF}
}

// Results holds the snapshot served by the results endpoints.
type Results struct {
	mu   sync.RWMutex
	last *RunSnapshot
}

func NewResults() *Results {
	return &Results{}
}

// Publish replaces the served snapshot with the given run.
func (r *Results) Publish(runID string, results []types.SuiteResult) {
	snap := &RunSnapshot{
		RunID:    runID,
		Status:   types.StatusSkip,
		Finished: time.Now(),
		Suites:   make([]SuiteSnapshot, 0, len(results)),
	}
	statuses := make([]types.Status, 0, len(results))
	for _, res := range results {
		statuses = append(statuses, res.Status)
		snap.Suites = append(snap.Suites, SuiteSnapshot{
			Name:     res.Name,
			Status:   res.Status,
			Duration: res.Duration().String(),
			Loops:    res.Loops,
			Aborted:  res.Aborted,
			Tests:    counts(res.Tests),
			Units:    counts(res.Units),
			Failures: res.FirstFailures(),
		})
	}
	if len(statuses) > 0 {
		snap.Status = types.WorstStatus(statuses...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = snap
}

// Last returns the latest snapshot, or nil before the first run completes.
func (r *Results) Last() *RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Suite looks up one suite of the latest snapshot.
func (r *Results) Suite(name string) (SuiteSnapshot, bool) {
	last := r.Last()
	if last == nil {
		return SuiteSnapshot{}, false
	}
	for _, s := range last.Suites {
		if s.Name == name {
			return s, true
		}
	}
	return SuiteSnapshot{}, false
}
