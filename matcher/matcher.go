// Package matcher evaluates group patterns and expected-exception message
// matches. Compiled expressions are kept in a bounded LRU cache so repeated
// evaluation across loops and data rows does not recompile them.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 256

// Matcher compiles and caches full-match regular expressions.
type Matcher struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

// New creates a Matcher holding at most size compiled expressions.
func New(size int) (*Matcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create regex cache: %w", err)
	}
	return &Matcher{cache: cache}, nil
}

var shared, _ = New(DefaultCacheSize)

// Default returns the process-wide Matcher.
func Default() *Matcher {
	return shared
}

// Compile returns the anchored expression for pattern.
func (m *Matcher) Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	m.cache.Add(pattern, re)
	return re, nil
}

// Match reports whether s matches pattern in full. Invalid patterns never match.
func (m *Matcher) Match(pattern, s string) bool {
	re, err := m.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// MessageMatches checks msg against an expected message. The expectation is
// tried as a literal substring first and as a full-match regular expression
// second. An empty expectation matches anything.
func (m *Matcher) MessageMatches(msg, expected string) bool {
	if expected == "" || strings.Contains(msg, expected) {
		return true
	}
	return m.Match(expected, msg)
}

// Len is the number of cached expressions.
func (m *Matcher) Len() int {
	return m.cache.Len()
}

// Match uses the process-wide Matcher.
func Match(pattern, s string) bool {
	return shared.Match(pattern, s)
}

// MessageMatches uses the process-wide Matcher.
func MessageMatches(msg, expected string) bool {
	return shared.MessageMatches(msg, expected)
}
