package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    bool
	}{
		{name: "literal", pattern: "smoke", input: "smoke", want: true},
		{name: "full match only", pattern: "smoke", input: "smoke-test", want: false},
		{name: "alternation anchored", pattern: "a|b", input: "ab", want: false},
		{name: "wildcard suffix", pattern: "net-.*", input: "net-fast", want: true},
		{name: "invalid pattern", pattern: "(", input: "(", want: false},
	}
	m, err := New(8)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.pattern, tt.input))
		})
	}
}

func TestMessageMatches(t *testing.T) {
	m, err := New(8)
	require.NoError(t, err)

	assert.True(t, m.MessageMatches("anything", ""))
	assert.True(t, m.MessageMatches("found the needle here", "needle"))
	assert.True(t, m.MessageMatches("code 42", `code \d+`))
	assert.False(t, m.MessageMatches("code 42 extra", `code \d+`))
	assert.False(t, m.MessageMatches("other", "needle"))
}

func TestCacheIsBounded(t *testing.T) {
	m, err := New(2)
	require.NoError(t, err)

	m.Match("a", "a")
	m.Match("b", "b")
	m.Match("c", "c")
	assert.Equal(t, 2, m.Len())

	_, err = m.Compile("(")
	require.Error(t, err)
	assert.Equal(t, 2, m.Len())
}
