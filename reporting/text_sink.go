package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-orchestrator/listener"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// TextSink writes each suite's summary to
// <baseDir>/testrun-<runID>/<suite>.summary.log once the suite finishes.
type TextSink struct {
	listener.Base

	baseDir string
	runID   string
	log     log.Logger

	mu        sync.Mutex
	summaries map[string]string
	written   []string
}

var _ listener.Listener = (*TextSink)(nil)

func NewTextSink(baseDir, runID string, logger log.Logger) *TextSink {
	return &TextSink{
		baseDir:   baseDir,
		runID:     runID,
		log:       logger,
		summaries: make(map[string]string),
	}
}

// OutputDir is the directory the summaries are written to.
func (s *TextSink) OutputDir() string {
	return filepath.Join(s.baseDir, "testrun-"+s.runID)
}

// Written lists the files written so far.
func (s *TextSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func (s *TextSink) Summary(suite string, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[suite] = text
}

func (s *TextSink) SuiteFinished(result types.SuiteResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.summaries[result.Name]
	if !ok {
		text = Summarize(result)
	}
	delete(s.summaries, result.Name)

	path, err := s.write(result.Name, text)
	if err != nil {
		s.log.Error("Failed to write summary", "suite", result.Name, "err", err)
		return
	}
	s.written = append(s.written, path)
	s.log.Debug("Wrote summary", "suite", result.Name, "path", path)
}

func (s *TextSink) write(suite, text string) (string, error) {
	outputDir := s.OutputDir()
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, safeFileName(suite)+".summary.log")
	if err := os.WriteFile(path, []byte(stripansi.Strip(text)), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return path, nil
}

func safeFileName(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}
