package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// RenderTable writes a results table covering every suite of a run.
func RenderTable(w io.Writer, runID string, results []types.SuiteResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	var (
		total    types.Counters
		duration time.Duration
	)
	for _, r := range results {
		duration += r.Duration()
	}
	t.SetTitle(fmt.Sprintf("Test Orchestration Results (%s, run %s)", formatDuration(duration), runID))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "KTF", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "KTF", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	overall := types.StatusSkip
	for _, r := range results {
		mergeCounters(&total, r.Tests)
		if r.Status == types.StatusFail || (r.Status == types.StatusPass && overall == types.StatusSkip) {
			overall = r.Status
		}

		t.AppendRow(table.Row{
			"Suite",
			r.Name,
			formatDuration(r.Duration()),
			"-",
			r.Tests.Pass,
			r.Tests.Fail,
			r.Tests.Skip,
			r.Tests.KTF,
			getResultString(r.Status),
			suiteError(r),
		})
		for i, rec := range r.Records {
			prefix := "├──"
			if i == len(r.Records)-1 {
				prefix = "└──"
			}
			id := rec.Name
			if rec.Row > 0 {
				id = fmt.Sprintf("%s [%d]", rec.Name, rec.Row)
			}
			t.AppendRow(table.Row{
				"Test",
				fmt.Sprintf("%s %s", prefix, id),
				formatDuration(rec.Duration),
				"1",
				boolToInt(rec.Status == types.StatusPass),
				boolToInt(rec.Status == types.StatusFail),
				boolToInt(rec.Status == types.StatusSkip),
				boolToInt(rec.Status == types.StatusKTF),
				getResultString(rec.Status),
				firstLine(rec.Diagnostic),
			})
		}
		t.AppendSeparator()
	}

	switch overall {
	case types.StatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.StatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(duration),
		total.Total(),
		total.Pass,
		total.Fail,
		total.Skip,
		total.KTF,
		getResultString(overall),
		"",
	})
	t.Render()
}

func mergeCounters(dst *types.Counters, src types.Counters) {
	dst.Pass += src.Pass
	dst.Fail += src.Fail
	dst.Skip += src.Skip
	dst.KTF += src.KTF
}

func suiteError(r types.SuiteResult) string {
	switch {
	case len(r.Exceptions) > 0:
		return firstLine(r.Exceptions[0])
	case r.Aborted:
		return "aborted"
	default:
		return ""
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func getResultString(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "✓ pass"
	case types.StatusSkip:
		return "- skip"
	case types.StatusKTF:
		return "~ ktf"
	default:
		return "✗ fail"
	}
}
