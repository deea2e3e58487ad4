package types

import (
	"fmt"
	"strings"
)

// Status is the outcome of a test, unit or step execution.
// Values are ordered: a higher value is a worse outcome.
type Status int

const (
	StatusPass Status = iota
	StatusSkip
	StatusKTF
	StatusFail
)

// String provides a string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusSkip:
		return "skip"
	case StatusKTF:
		return "ktf"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Rank returns the position of the status in the lattice PASS < SKIP < KTF < FAIL.
func (s Status) Rank() int {
	return int(s)
}

// WorseOrEqual reports whether s ranks at least as high as other.
func (s Status) WorseOrEqual(other Status) bool {
	return s.Rank() >= other.Rank()
}

// WorstStatus returns the highest ranked status. An empty list yields StatusPass.
func WorstStatus(statuses ...Status) Status {
	worst := StatusPass
	for _, s := range statuses {
		if s.Rank() > worst.Rank() {
			worst = s
		}
	}
	return worst
}

// ParseStatus parses the textual form produced by String.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed":
		return StatusPass, nil
	case "skip", "skipped":
		return StatusSkip, nil
	case "ktf", "known-to-fail":
		return StatusKTF, nil
	case "fail", "failed":
		return StatusFail, nil
	default:
		return StatusPass, fmt.Errorf("unknown status %q", s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
