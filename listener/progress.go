package listener

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Progress periodically logs how far the running suites have got. One
// instance may be shared by several concurrently running suites.
type Progress struct {
	Base

	logger log.Logger
	ticker *time.Ticker
	stopCh chan struct{}
	stop   sync.Once
	mu     sync.RWMutex

	suites map[string]*suiteProgress
}

type suiteProgress struct {
	start     time.Time
	loop      int
	loops     int
	total     int
	completed int
	failed    int
	// running maps the running test name to its start time
	running map[string]time.Time
}

var _ Listener = (*Progress)(nil)

// NewProgress creates a Progress listener that reports every updateInterval.
// Call Stop to release the reporting goroutine.
func NewProgress(logger log.Logger, updateInterval time.Duration) *Progress {
	if updateInterval == 0 {
		updateInterval = 30 * time.Second
	}
	p := &Progress{
		logger: logger,
		ticker: time.NewTicker(updateInterval),
		stopCh: make(chan struct{}),
		suites: make(map[string]*suiteProgress),
	}
	go p.progressReporter()
	return p
}

func (p *Progress) SuiteStarted(info types.SuiteInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.suites[info.Name] = &suiteProgress{
		start:   time.Now(),
		loops:   info.Loops,
		total:   (info.Tests + info.Scenarios) * max(info.Loops, 1),
		running: make(map[string]time.Time),
	}
	p.logger.Info("Starting suite", "suite", info.Name, "totalTests", info.Tests+info.Scenarios, "loops", info.Loops)
}

func (p *Progress) LoopChanged(suite string, loop, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.suites[suite]; ok {
		s.loop = loop
	}
}

func (p *Progress) TestStarted(info types.TestInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.suites[info.Suite]
	if !ok {
		return
	}
	s.running[info.Name] = time.Now()
	p.logger.Debug("Test started", "suite", info.Suite, "test", info.Name, "runningTests", len(s.running))
}

func (p *Progress) TestFinished(record types.TestRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.suites[record.Suite]
	if !ok {
		return
	}
	delete(s.running, record.Name)
	// parameterized rows count once, on the first row
	if record.Row == 0 {
		s.completed++
	}
	if record.Status == types.StatusFail {
		s.failed++
	}
	p.logger.Debug("Test completed", "suite", record.Suite, "test", record.Name, "status", record.Status, "completed", s.completed, "total", s.total)
}

func (p *Progress) SuiteFinished(result types.SuiteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.suites[result.Name]
	if !ok {
		return
	}
	delete(p.suites, result.Name)
	duration := time.Since(s.start).Truncate(time.Second)
	p.logger.Info("Completed suite", "suite", result.Name, "status", result.Status, "completed", s.completed, "total", s.total, "duration", duration)
}

func (p *Progress) progressReporter() {
	for {
		select {
		case <-p.ticker.C:
			p.reportProgress()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Progress) reportProgress() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.suites))
	for name := range p.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := p.suites[name]
		var percentComplete float64
		if s.total > 0 {
			percentComplete = float64(s.completed) * 100.0 / float64(s.total)
		}
		p.logger.Info("Progress update",
			"suite", name,
			"loop", s.loop,
			"loops", s.loops,
			"completed", s.completed,
			"failed", s.failed,
			"total", s.total,
			"percent", fmt.Sprintf("%.1f%%", percentComplete),
			"numRunning", len(s.running),
			"longestRunning", formatRunningTests(s.running, 3))
	}
}

// Stop stops the reporting goroutine. It is safe to call more than once.
func (p *Progress) Stop() {
	p.stop.Do(func() {
		p.ticker.Stop()
		close(p.stopCh)
	})
}

func formatRunningTests(runningTests map[string]time.Time, maxShow int) string {
	if len(runningTests) == 0 {
		return ""
	}

	type runningTest struct {
		name     string
		duration time.Duration
	}

	var running []runningTest
	now := time.Now()
	for testName, startTime := range runningTests {
		running = append(running, runningTest{
			name:     testName,
			duration: now.Sub(startTime),
		})
	}

	// longest running first
	sort.Slice(running, func(i, j int) bool {
		if running[i].duration == running[j].duration {
			return running[i].name < running[j].name
		}
		return running[i].duration > running[j].duration
	})

	var runningStrs []string
	for i, test := range running {
		if i >= maxShow {
			break
		}
		runningStrs = append(runningStrs, fmt.Sprintf("%s (%v)", test.name, test.duration.Truncate(time.Second)))
	}
	if len(running) > maxShow {
		runningStrs = append(runningStrs, fmt.Sprintf("+%d more", len(running)-maxShow))
	}

	return strings.Join(runningStrs, ", ")
}
