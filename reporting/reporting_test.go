package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

func sampleResult() types.SuiteResult {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tests, units types.Counters
	tests.Record("pkg.Param[0]", types.StatusPass, types.ImportanceHigh)
	tests.Record("pkg.Param[1]", types.StatusFail, types.ImportanceHigh)
	tests.Record("pkg.Param[2]", types.StatusFail, types.ImportanceHigh)
	tests.Record("pkg.Known", types.StatusKTF, types.ImportanceUndefined)
	units.Record("pkg.Known/step", types.StatusKTF, types.ImportanceUndefined)

	return types.SuiteResult{
		Name:   "smoke",
		RunID:  "run-1",
		Status: types.StatusFail,
		Start:  start,
		Finish: start.Add(1500 * time.Millisecond),
		Loops:  1,
		Tests:  tests,
		Units:  units,
		Records: []types.TestRecord{
			{Name: "pkg.Param", Row: 0, Status: types.StatusPass, Importance: types.ImportanceHigh},
			{Name: "pkg.Param", Row: 1, Status: types.StatusFail, Importance: types.ImportanceHigh, Diagnostic: "bad version\nwith detail"},
			{Name: "pkg.Param", Row: 2, Status: types.StatusFail, Importance: types.ImportanceHigh, Diagnostic: "also bad"},
			{
				Name:   "pkg.Known",
				Status: types.StatusKTF,
				BugRef: "BUG-3",
				Units:  []types.UnitSummary{{Name: "step", Status: types.StatusKTF, BugRef: "BUG-3"}},
			},
		},
		Exceptions: []string{"before-suite hook: \x1b[31mred\x1b[0m"},
	}
}

func TestSummarize(t *testing.T) {
	out := Summarize(sampleResult())

	assert.Contains(t, out, "Suite smoke: FAIL (1.5s, 1 loop(s))")
	assert.Contains(t, out, "Tests: total=4 pass=1 fail=2 skip=0 ktf=1")
	assert.Contains(t, out, "Units: total=1 pass=0 fail=0 skip=0 ktf=1")
	assert.Contains(t, out, "failed by importance: high=2/3 undefined=0/1")
	assert.Contains(t, out, "*** FAILURES ***")
	assert.Contains(t, out, "✗ pkg.Param [row 1] (high): bad version\n")
	assert.NotContains(t, out, "also bad", "only the first failing row is listed")
	assert.NotContains(t, out, "with detail")
	assert.Contains(t, out, "Exceptions:")
	assert.NotContains(t, out, "Run aborted")
}

func TestSummarize_Aborted(t *testing.T) {
	out := Summarize(types.SuiteResult{Name: "s", Status: types.StatusSkip, Aborted: true})
	assert.Contains(t, out, "Run aborted before all tests executed")
	assert.NotContains(t, out, "FAILURES")
	assert.NotContains(t, out, "failed by importance")
}

func TestRenderTable(t *testing.T) {
	passing := types.SuiteResult{Name: "green", Status: types.StatusPass}
	passing.Tests.Record("pkg.A", types.StatusPass, types.ImportanceUndefined)
	passing.Records = []types.TestRecord{{Name: "pkg.A", Status: types.StatusPass}}

	var buf bytes.Buffer
	RenderTable(&buf, "run-1", []types.SuiteResult{passing, sampleResult()})
	out := buf.String()

	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "green")
	assert.Contains(t, out, "smoke")
	assert.Contains(t, out, "pkg.Param [2]")
	assert.Contains(t, out, "~ ktf")
	assert.Contains(t, out, "✗ fail")
	assert.Contains(t, out, "TOTAL")
}

func TestGetResultString(t *testing.T) {
	tests := []struct {
		status types.Status
		want   string
	}{
		{types.StatusPass, "✓ pass"},
		{types.StatusSkip, "- skip"},
		{types.StatusKTF, "~ ktf"},
		{types.StatusFail, "✗ fail"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, getResultString(tt.status))
		})
	}
}

func TestTextSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewTextSink(dir, "run-1", log.NewLogger(log.DiscardHandler()))
	result := sampleResult()
	result.Name = "smoke/nightly"

	sink.Summary(result.Name, Summarize(result))
	sink.SuiteFinished(result)

	written := sink.Written()
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(dir, "testrun-run-1", "smoke_nightly.summary.log"), written[0])

	content, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Suite smoke/nightly: FAIL")
	assert.Contains(t, string(content), "before-suite hook: red")
	assert.NotContains(t, string(content), "\x1b[")
}

func TestTextSink_SummarizesWithoutSummaryEvent(t *testing.T) {
	dir := t.TempDir()
	sink := NewTextSink(dir, "run-2", log.NewLogger(log.DiscardHandler()))
	sink.SuiteFinished(types.SuiteResult{Name: "bare", Status: types.StatusSkip})

	content, err := os.ReadFile(filepath.Join(sink.OutputDir(), "bare.summary.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Suite bare: SKIP")
}
