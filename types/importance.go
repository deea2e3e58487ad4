package types

import (
	"fmt"
	"strings"
)

// Importance classifies the severity of a test or unit. It is only used for
// reporting and aggregation.
type Importance int

const (
	ImportanceUndefined Importance = iota
	ImportanceLow
	ImportanceMedium
	ImportanceHigh
	ImportanceCritical
	ImportanceFatal
)

// Importances lists every importance from most to least severe, the order used in summaries.
var Importances = []Importance{
	ImportanceFatal,
	ImportanceCritical,
	ImportanceHigh,
	ImportanceMedium,
	ImportanceLow,
	ImportanceUndefined,
}

func (i Importance) String() string {
	switch i {
	case ImportanceUndefined:
		return "undefined"
	case ImportanceLow:
		return "low"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	case ImportanceCritical:
		return "critical"
	case ImportanceFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseImportance parses an importance name. An empty string is ImportanceUndefined.
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "undefined":
		return ImportanceUndefined, nil
	case "low":
		return ImportanceLow, nil
	case "medium":
		return ImportanceMedium, nil
	case "high":
		return ImportanceHigh, nil
	case "critical":
		return ImportanceCritical, nil
	case "fatal":
		return ImportanceFatal, nil
	default:
		return ImportanceUndefined, fmt.Errorf("unknown importance %q", s)
	}
}

func (i Importance) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Importance) UnmarshalText(text []byte) error {
	parsed, err := ParseImportance(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
