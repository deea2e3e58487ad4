package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_Record(t *testing.T) {
	var c Counters
	c.Record("a", StatusPass, ImportanceLow)
	c.Record("b", StatusFail, ImportanceFatal)
	c.Record("c", StatusSkip, ImportanceLow)
	c.Record("d", StatusKTF, ImportanceHigh)
	c.Record("e", StatusFail, ImportanceFatal)

	assert.Equal(t, 5, c.Total())
	assert.Equal(t, c.Total(), c.Pass+c.Fail+c.Skip+c.KTF)
	assert.Equal(t, []string{"b", "e"}, c.FailNames)
	assert.Equal(t, 2, c.FailedByImportance[ImportanceFatal])
	assert.Equal(t, 2, c.ByImportance[ImportanceLow])
	assert.Equal(t, StatusFail, c.Verdict())
}

func TestCounters_Verdict(t *testing.T) {
	var empty Counters
	assert.Equal(t, StatusSkip, empty.Verdict())

	var skipped Counters
	skipped.Record("a", StatusSkip, ImportanceUndefined)
	assert.Equal(t, StatusSkip, skipped.Verdict())

	var mixed Counters
	mixed.Record("a", StatusSkip, ImportanceUndefined)
	mixed.Record("b", StatusKTF, ImportanceUndefined)
	assert.Equal(t, StatusPass, mixed.Verdict())
}

func TestCounters_CloneIsDeep(t *testing.T) {
	var c Counters
	c.Record("a", StatusFail, ImportanceHigh)
	clone := c.Clone()
	c.Record("b", StatusFail, ImportanceHigh)

	assert.Equal(t, []string{"a"}, clone.FailNames)
	assert.Equal(t, 1, clone.FailedByImportance[ImportanceHigh])
}

func TestSuiteResult_FirstFailures(t *testing.T) {
	r := SuiteResult{
		Records: []TestRecord{
			{Name: "pkg.Param", Row: 0, Status: StatusPass},
			{Name: "pkg.Param", Row: 1, Status: StatusFail, Diagnostic: "row 1"},
			{Name: "pkg.Param", Row: 2, Status: StatusFail, Diagnostic: "row 2"},
			{Name: "pkg.Units", Status: StatusFail, Units: []UnitSummary{
				{Name: "u1", Status: StatusPass},
				{Name: "u2", Status: StatusFail, Diagnostic: "boom"},
			}},
		},
	}

	failures := r.FirstFailures()
	require.Len(t, failures, 3)
	assert.Equal(t, "pkg.Param", failures[0].Name)
	assert.Equal(t, 1, failures[0].Row)
	assert.Equal(t, "pkg.Units", failures[1].Name)
	assert.Equal(t, "pkg.Units/u2", failures[2].Name)
	assert.Equal(t, "boom", failures[2].Diagnostic)
}

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestKindOf(t *testing.T) {
	assert.Equal(t, ExceptionKind(""), KindOf(nil))
	assert.Equal(t, KindAssertion, KindOf(Throw(KindAssertion, "x")))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", Throw(KindTimeout, "late"))))
	assert.Equal(t, KindExitStatus, KindOf(&Exception{ExceptionKind: KindExitStatus, Cause: Throw(KindAssertion, "inner")}))
	assert.Equal(t, ExceptionKind("types.customErr"), KindOf(customErr{}))
	assert.Equal(t, ExceptionKind("*errors.errorString"), KindOf(errors.New("plain")))
}

func TestExpectedException(t *testing.T) {
	exp := ExpectedException{Kinds: []ExceptionKind{KindAssertion}}
	assert.True(t, exp.Declared())
	assert.True(t, exp.Expects(KindAssertion))
	assert.False(t, exp.Expects(KindPanic))
	assert.False(t, ExpectedException{}.Declared())
}
