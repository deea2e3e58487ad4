package types

import (
	"maps"
	"slices"
	"time"
)

// Counters aggregates outcomes at one granularity (tests or units).
type Counters struct {
	Pass int
	Fail int
	Skip int
	KTF  int

	// ByImportance counts every recorded outcome per importance.
	ByImportance map[Importance]int
	// FailedByImportance counts failures per importance.
	FailedByImportance map[Importance]int

	PassNames []string
	FailNames []string
	SkipNames []string
	KTFNames  []string
}

// Record adds one outcome.
func (c *Counters) Record(name string, status Status, importance Importance) {
	if c.ByImportance == nil {
		c.ByImportance = make(map[Importance]int)
	}
	if c.FailedByImportance == nil {
		c.FailedByImportance = make(map[Importance]int)
	}
	c.ByImportance[importance]++
	switch status {
	case StatusPass:
		c.Pass++
		c.PassNames = append(c.PassNames, name)
	case StatusSkip:
		c.Skip++
		c.SkipNames = append(c.SkipNames, name)
	case StatusKTF:
		c.KTF++
		c.KTFNames = append(c.KTFNames, name)
	default:
		c.Fail++
		c.FailNames = append(c.FailNames, name)
		c.FailedByImportance[importance]++
	}
}

// Total is the number of recorded outcomes.
func (c Counters) Total() int {
	return c.Pass + c.Fail + c.Skip + c.KTF
}

// Count returns the number of outcomes with the given status.
func (c Counters) Count(status Status) int {
	switch status {
	case StatusPass:
		return c.Pass
	case StatusSkip:
		return c.Skip
	case StatusKTF:
		return c.KTF
	default:
		return c.Fail
	}
}

// Verdict summarises the counters: any failure fails, nothing but skips skips.
func (c Counters) Verdict() Status {
	switch {
	case c.Fail > 0:
		return StatusFail
	case c.Total() == 0 || c.Skip == c.Total():
		return StatusSkip
	default:
		return StatusPass
	}
}

// Clone returns a deep copy safe to hand to observers.
func (c Counters) Clone() Counters {
	out := c
	out.ByImportance = maps.Clone(c.ByImportance)
	out.FailedByImportance = maps.Clone(c.FailedByImportance)
	out.PassNames = slices.Clone(c.PassNames)
	out.FailNames = slices.Clone(c.FailNames)
	out.SkipNames = slices.Clone(c.SkipNames)
	out.KTFNames = slices.Clone(c.KTFNames)
	return out
}

// SuiteInfo is broadcast when a suite starts.
type SuiteInfo struct {
	Name      string
	RunID     string
	Loops     int
	Tests     int
	Scenarios int
	Start     time.Time
}

// TestInfo identifies one execution of a test or scenario.
type TestInfo struct {
	Suite      string
	Name       string
	Loop       int
	Row        int
	Importance Importance
}

// UnitInfo identifies one execution of a unit or step.
type UnitInfo struct {
	Suite   string
	Test    string
	Name    string
	Loop    int
	Row     int
	UnitRow int
}

// HookInfo identifies one hook invocation.
type HookInfo struct {
	Suite string
	Phase HookPhase
	Test  string
	Unit  string
}

// UnitSummary is the structured record emitted for every finished unit execution.
type UnitSummary struct {
	Suite      string
	Test       string
	Name       string
	Loop       int
	Row        int
	UnitRow    int
	Status     Status
	Duration   time.Duration
	Importance Importance
	BugRef     string
	Diagnostic string
}

// TestRecord is the outcome of one row of one test or scenario.
type TestRecord struct {
	Suite      string
	Name       string
	Loop       int
	Row        int
	Status     Status
	Duration   time.Duration
	Importance Importance
	BugRef     string
	Diagnostic string
	Units      []UnitSummary
}

// SuiteResult is the final state of a suite run.
type SuiteResult struct {
	Name   string
	RunID  string
	Status Status
	Start  time.Time
	Finish time.Time
	Loops  int

	Tests Counters
	Units Counters

	Records []TestRecord
	// Exceptions lists errors raised by suite and test level hooks.
	Exceptions []string
	// Aborted is set when stop-on-fail abandoned the remaining tests.
	Aborted bool
}

// Duration is the wall clock time of the suite.
func (r SuiteResult) Duration() time.Duration {
	if r.Finish.Before(r.Start) {
		return 0
	}
	return r.Finish.Sub(r.Start)
}

// Failure names one failing test or unit for reporting.
type Failure struct {
	Name       string
	Row        int
	Importance Importance
	BugRef     string
	Diagnostic string
}

// FirstFailures lists failing test and unit identities in execution order. For
// parameterized tests only the first failing row of each identity is listed.
func (r SuiteResult) FirstFailures() []Failure {
	seen := make(map[string]bool)
	var out []Failure
	add := func(f Failure) {
		if seen[f.Name] {
			return
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	for _, rec := range r.Records {
		if rec.Status == StatusFail {
			add(Failure{Name: rec.Name, Row: rec.Row, Importance: rec.Importance, BugRef: rec.BugRef, Diagnostic: rec.Diagnostic})
		}
		for _, u := range rec.Units {
			if u.Status == StatusFail {
				add(Failure{Name: rec.Name + "/" + u.Name, Row: u.Row, Importance: u.Importance, BugRef: u.BugRef, Diagnostic: u.Diagnostic})
			}
		}
	}
	return out
}
