// Package reporting renders suite results for people: summary text, results
// tables and summary files.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Summarize renders the end-of-suite summary: counts by status and by
// importance at test and unit level, followed by the failing identities. Only
// the first failing row of a parameterized test is listed.
func Summarize(r types.SuiteResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suite %s: %s (%s, %d loop(s))\n", r.Name, strings.ToUpper(r.Status.String()), formatDuration(r.Duration()), r.Loops)
	if r.Aborted {
		b.WriteString("Run aborted before all tests executed\n")
	}
	writeCounters(&b, "Tests", r.Tests)
	writeCounters(&b, "Units", r.Units)

	failures := r.FirstFailures()
	if len(failures) > 0 {
		b.WriteString("\n*** FAILURES ***\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  ✗ %s", f.Name)
			if f.Row > 0 {
				fmt.Fprintf(&b, " [row %d]", f.Row)
			}
			if f.Importance != types.ImportanceUndefined {
				fmt.Fprintf(&b, " (%s)", f.Importance)
			}
			if f.BugRef != "" {
				fmt.Fprintf(&b, " bug=%s", f.BugRef)
			}
			if f.Diagnostic != "" {
				fmt.Fprintf(&b, ": %s", firstLine(f.Diagnostic))
			}
			b.WriteString("\n")
		}
	}

	if len(r.Exceptions) > 0 {
		b.WriteString("\nExceptions:\n")
		for _, e := range r.Exceptions {
			fmt.Fprintf(&b, "  ! %s\n", firstLine(e))
		}
	}
	return b.String()
}

func writeCounters(b *strings.Builder, label string, c types.Counters) {
	fmt.Fprintf(b, "%s: total=%d pass=%d fail=%d skip=%d ktf=%d\n", label, c.Total(), c.Pass, c.Fail, c.Skip, c.KTF)
	if c.Total() == 0 {
		return
	}
	var parts []string
	for _, imp := range types.Importances {
		if n := c.ByImportance[imp]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d/%d", imp, c.FailedByImportance[imp], n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "  failed by importance: %s\n", strings.Join(parts, " "))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
