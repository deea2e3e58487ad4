package listener

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

type recording struct {
	Base
	name   string
	events *[]string
}

func (r recording) TestStarted(info types.TestInfo) {
	*r.events = append(*r.events, r.name+":"+info.Name)
}

func (r recording) HookFinished(info types.HookInfo, err error) {
	*r.events = append(*r.events, r.name+":"+string(info.Phase)+":"+err.Error())
}

type panicking struct {
	Base
}

func (panicking) TestStarted(types.TestInfo) {
	panic("listener bug")
}

func TestFanout_OrderAndIsolation(t *testing.T) {
	var events []string
	f := NewFanout(log.NewLogger(log.DiscardHandler()),
		recording{name: "first", events: &events},
		nil,
		panicking{},
		recording{name: "second", events: &events},
	)
	require.Equal(t, 3, f.Len())

	require.NotPanics(t, func() {
		f.TestStarted(types.TestInfo{Name: "pkg.A"})
	})
	f.HookFinished(types.HookInfo{Phase: types.PhaseBeforeTest}, errors.New("boom"))

	assert.Equal(t, []string{
		"first:pkg.A",
		"second:pkg.A",
		"first:before-test:boom",
		"second:before-test:boom",
	}, events)
}

func TestFanout_OnPanic(t *testing.T) {
	var panics []string
	f := NewFanout(log.NewLogger(log.DiscardHandler()), panicking{}, Base{}).
		OnPanic(func(event string, err error) {
			assert.ErrorIs(t, err, ErrListenerPanic)
			panics = append(panics, event)
		})

	f.TestStarted(types.TestInfo{Name: "pkg.A"})
	f.TestFinished(types.TestRecord{Name: "pkg.A"})
	assert.Equal(t, []string{"test-started"}, panics)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestLog_FailuresAtWarn(t *testing.T) {
	out := &syncBuffer{}
	l := NewLog(log.NewLogger(log.NewTerminalHandlerWithLevel(out, log.LevelWarn, false)))

	l.TestFinished(types.TestRecord{Suite: "s", Name: "pkg.Ok", Status: types.StatusPass})
	l.TestFinished(types.TestRecord{Suite: "s", Name: "pkg.Bad", Status: types.StatusFail, Diagnostic: "assertion"})
	l.UnitFinished(types.UnitSummary{Suite: "s", Test: "pkg.Bad", Name: "u1", Status: types.StatusFail, BugRef: "BUG-1"})

	text := out.String()
	assert.NotContains(t, text, "pkg.Ok")
	assert.Contains(t, text, "Test failed")
	assert.Contains(t, text, "Unit failed")
	assert.Contains(t, text, "BUG-1")
}

func TestProgress_Reports(t *testing.T) {
	out := &syncBuffer{}
	p := NewProgress(log.NewLogger(log.NewTerminalHandlerWithLevel(out, log.LevelInfo, false)), 20*time.Millisecond)
	defer p.Stop()

	p.SuiteStarted(types.SuiteInfo{Name: "smoke", Tests: 2, Loops: 1})
	p.TestStarted(types.TestInfo{Suite: "smoke", Name: "pkg.Slow"})
	p.TestFinished(types.TestRecord{Suite: "smoke", Name: "pkg.Fast", Status: types.StatusPass})

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Progress update")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "pkg.Slow")

	p.SuiteFinished(types.SuiteResult{Name: "smoke", Status: types.StatusPass})
	assert.Contains(t, out.String(), "Completed suite")

	p.Stop()
}

func TestFormatRunningTests(t *testing.T) {
	now := time.Now()
	running := map[string]time.Time{
		"a": now.Add(-3 * time.Second),
		"b": now.Add(-5 * time.Second),
		"c": now.Add(-1 * time.Second),
		"d": now,
	}
	got := formatRunningTests(running, 2)
	assert.True(t, strings.HasPrefix(got, "b ("), got)
	assert.Contains(t, got, "a (")
	assert.Contains(t, got, "+2 more")
	assert.Equal(t, "", formatRunningTests(nil, 3))
}
