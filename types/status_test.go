package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Ordering(t *testing.T) {
	assert.Less(t, StatusPass.Rank(), StatusSkip.Rank())
	assert.Less(t, StatusSkip.Rank(), StatusKTF.Rank())
	assert.Less(t, StatusKTF.Rank(), StatusFail.Rank())
	assert.True(t, StatusFail.WorseOrEqual(StatusKTF))
	assert.False(t, StatusSkip.WorseOrEqual(StatusKTF))
}

func TestWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{name: "empty", want: StatusPass},
		{name: "all pass", statuses: []Status{StatusPass, StatusPass}, want: StatusPass},
		{name: "skip beats pass", statuses: []Status{StatusPass, StatusSkip}, want: StatusSkip},
		{name: "ktf beats skip", statuses: []Status{StatusSkip, StatusKTF, StatusPass}, want: StatusKTF},
		{name: "fail wins regardless of position", statuses: []Status{StatusFail, StatusKTF, StatusPass}, want: StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorstStatus(tt.statuses...))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusPass, StatusSkip, StatusKTF, StatusFail} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("maybe")
	require.Error(t, err)
}

func TestParseImportance(t *testing.T) {
	imp, err := ParseImportance("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, ImportanceCritical, imp)

	imp, err = ParseImportance("")
	require.NoError(t, err)
	assert.Equal(t, ImportanceUndefined, imp)

	_, err = ParseImportance("severe")
	require.Error(t, err)
}
