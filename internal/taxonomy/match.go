// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package taxonomy

import (
	"regexp"
	"strings"
)

// Matcher finds phrases in lowercased text on word boundaries. A phrase
// matches only when the characters on either side of it are not letters
// or digits, so "stroke" does not match "strokes" and "vs" does not
// match "canvas".
type Matcher struct {
	phrases []string
	res     []*regexp.Regexp
}

// NewMatcher compiles phrases into a Matcher. Phrases are lowercased and
// trimmed; empty phrases and duplicates are skipped.
func NewMatcher(phrases []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		m.phrases = append(m.phrases, p)
		m.res = append(m.res, regexp.MustCompile(`(?:^|[^\p{L}\p{N}])`+regexp.QuoteMeta(p)+`(?:$|[^\p{L}\p{N}])`))
	}
	return m
}

// Len returns the number of phrases in the matcher.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.phrases)
}

// Phrases returns the compiled phrases in declaration order.
func (m *Matcher) Phrases() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.phrases...)
}

// Contains reports whether any phrase occurs in text. text must already
// be lowercased.
func (m *Matcher) Contains(text string) bool {
	if m == nil || text == "" {
		return false
	}
	for _, re := range m.res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Find returns every phrase that occurs in text, in declaration order.
// text must already be lowercased.
func (m *Matcher) Find(text string) []string {
	if m == nil || text == "" {
		return nil
	}
	var found []string
	for i, re := range m.res {
		if re.MatchString(text) {
			found = append(found, m.phrases[i])
		}
	}
	return found
}

// First returns the first declared phrase occurring in text, or "".
func (m *Matcher) First(text string) string {
	if m == nil || text == "" {
		return ""
	}
	for i, re := range m.res {
		if re.MatchString(text) {
			return m.phrases[i]
		}
	}
	return ""
}
