package listener

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Log writes lifecycle events to a structured logger. Suite level events are
// logged at info, test and unit events at debug, failures at warn.
type Log struct {
	log log.Logger
}

var _ Listener = (*Log)(nil)

func NewLog(logger log.Logger) *Log {
	return &Log{log: logger.New("component", "listener")}
}

func (l *Log) SuiteStarted(info types.SuiteInfo) {
	l.log.Info("Suite started", "suite", info.Name, "run_id", info.RunID, "loops", info.Loops, "tests", info.Tests, "scenarios", info.Scenarios)
}

func (l *Log) SuiteFinished(result types.SuiteResult) {
	l.log.Info("Suite finished",
		"suite", result.Name,
		"status", result.Status,
		"duration", result.Duration(),
		"tests", result.Tests.Total(),
		"failed", result.Tests.Fail,
		"units", result.Units.Total(),
		"aborted", result.Aborted)
}

func (l *Log) LoopChanged(suite string, loop, total int) {
	l.log.Info("Loop started", "suite", suite, "loop", loop, "of", total)
}

func (l *Log) TestStarted(info types.TestInfo) {
	l.log.Debug("Test started", "suite", info.Suite, "test", info.Name, "loop", info.Loop, "row", info.Row)
}

func (l *Log) TestFinished(record types.TestRecord) {
	fields := []any{"suite", record.Suite, "test", record.Name, "row", record.Row, "status", record.Status, "duration", record.Duration}
	if record.Status == types.StatusFail {
		l.log.Warn("Test failed", append(fields, "importance", record.Importance, "diagnostic", record.Diagnostic)...)
		return
	}
	l.log.Debug("Test finished", fields...)
}

func (l *Log) UnitStarted(info types.UnitInfo) {
	l.log.Debug("Unit started", "suite", info.Suite, "test", info.Test, "unit", info.Name, "row", info.UnitRow)
}

func (l *Log) UnitFinished(s types.UnitSummary) {
	fields := []any{"suite", s.Suite, "test", s.Test, "unit", s.Name, "row", s.UnitRow, "status", s.Status, "duration", s.Duration}
	if s.BugRef != "" {
		fields = append(fields, "bug", s.BugRef)
	}
	if s.Status == types.StatusFail {
		l.log.Warn("Unit failed", append(fields, "diagnostic", s.Diagnostic)...)
		return
	}
	l.log.Debug("Unit finished", fields...)
}

func (l *Log) HookStarted(info types.HookInfo) {
	l.log.Trace("Hook started", "suite", info.Suite, "phase", info.Phase, "test", info.Test, "unit", info.Unit)
}

func (l *Log) HookFinished(info types.HookInfo, err error) {
	if err != nil {
		l.log.Warn("Hook failed", "suite", info.Suite, "phase", info.Phase, "test", info.Test, "unit", info.Unit, "err", err)
		return
	}
	l.log.Trace("Hook finished", "suite", info.Suite, "phase", info.Phase)
}

func (l *Log) SuiteException(suite string, err error) {
	l.log.Error("Suite exception", "suite", suite, "err", err)
}

func (l *Log) TestException(info types.TestInfo, err error) {
	l.log.Error("Test exception", "suite", info.Suite, "test", info.Name, "row", info.Row, "err", err)
}

func (l *Log) Summary(suite string, text string) {
	l.log.Info("Suite summary", "suite", suite, "summary", text)
}
