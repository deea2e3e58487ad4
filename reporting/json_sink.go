package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

const eventsLog = "events.jsonl"

// TestEvent mirrors the `go test -json` event format so that tools such as
// gotestsum can consume a run. Package is the suite name; unit events use
// "<test>/<unit>" as the test name.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test,omitempty"`
	Output  string    `json:"Output,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
}

// JSONSink appends one TestEvent line per test and unit execution to
// <baseDir>/testrun-<runID>/events.jsonl.
type JSONSink struct {
	listener.Base

	dir string
	log log.Logger
	now func() time.Time

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

var _ listener.Listener = (*JSONSink)(nil)

func NewJSONSink(baseDir, runID string, logger log.Logger) *JSONSink {
	return &JSONSink{
		dir: filepath.Join(baseDir, "testrun-"+runID),
		log: logger,
		now: time.Now,
	}
}

// Path is the file events are written to.
func (s *JSONSink) Path() string {
	return filepath.Join(s.dir, eventsLog)
}

func (s *JSONSink) TestStarted(info types.TestInfo) {
	s.emit(TestEvent{Action: "run", Package: info.Suite, Test: info.Name})
}

func (s *JSONSink) TestFinished(rec types.TestRecord) {
	if rec.Diagnostic != "" {
		s.emit(TestEvent{Action: "output", Package: rec.Suite, Test: rec.Name, Output: rec.Diagnostic + "\n"})
	}
	s.emit(TestEvent{Action: action(rec.Status), Package: rec.Suite, Test: rec.Name, Elapsed: rec.Duration.Seconds()})
}

func (s *JSONSink) UnitStarted(info types.UnitInfo) {
	s.emit(TestEvent{Action: "run", Package: info.Suite, Test: info.Test + "/" + info.Name})
}

func (s *JSONSink) UnitFinished(u types.UnitSummary) {
	name := u.Test + "/" + u.Name
	if u.Diagnostic != "" {
		s.emit(TestEvent{Action: "output", Package: u.Suite, Test: name, Output: u.Diagnostic + "\n"})
	}
	s.emit(TestEvent{Action: action(u.Status), Package: u.Suite, Test: name, Elapsed: u.Duration.Seconds()})
}

func (s *JSONSink) SuiteFinished(result types.SuiteResult) {
	s.emit(TestEvent{Action: action(result.Status), Package: result.Name, Elapsed: result.Duration().Seconds()})
}

// Close flushes and closes the events file.
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.enc = nil
	return err
}

// action maps a status onto the go test vocabulary. Known failures are
// reported as skips so that they do not fail downstream tooling.
func action(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "pass"
	case types.StatusFail:
		return "fail"
	default:
		return "skip"
	}
}

func (s *JSONSink) emit(ev TestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enc == nil {
		if err := s.open(); err != nil {
			s.log.Error("Failed to open events file", "path", s.Path(), "err", err)
			return
		}
	}
	ev.Time = s.now()
	if err := s.enc.Encode(ev); err != nil {
		s.log.Error("Failed to write event", "path", s.Path(), "err", err)
	}
}

func (s *JSONSink) open() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.Path(), err)
	}
	s.file = f
	s.enc = json.NewEncoder(f)
	return nil
}
