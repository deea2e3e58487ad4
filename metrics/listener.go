package metrics

import (
	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Listener records suite lifecycle events as Prometheus metrics.
type Listener struct {
	listener.Base
	runID string
}

var _ listener.Listener = (*Listener)(nil)

func NewListener(runID string) *Listener {
	return &Listener{runID: runID}
}

func (l *Listener) SuiteStarted(types.SuiteInfo) {
	RecordSuiteStarted()
}

func (l *Listener) SuiteFinished(result types.SuiteResult) {
	RecordSuite(result)
}

func (l *Listener) TestFinished(rec types.TestRecord) {
	RecordTest(rec.Suite, l.runID, rec.Importance, rec.Status, rec.Duration)
}

func (l *Listener) UnitFinished(s types.UnitSummary) {
	RecordUnit(s.Suite, l.runID, s.Status)
}

func (l *Listener) HookFinished(info types.HookInfo, err error) {
	if err != nil {
		RecordHookError(info.Suite, info.Phase)
	}
}

func (l *Listener) SuiteException(_ string, err error) {
	RecordErrorDetails("suite", err)
}
