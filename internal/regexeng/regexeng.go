// Package regexeng adapts github.com/dlclark/regexp2 — a PCRE/.NET-style
// backtracking regex engine with capture groups and lookaround — behind
// a thin contract of compile-once, match-many operations. It backs
// extract, delete, retain, and discard.
package regexeng

import (
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

// Pattern wraps a compiled regular expression.
type Pattern struct {
	re        *regexp2.Regexp
	hasGroup1 bool
}

// Compile compiles pattern with multiline-capable, singleline-capable
// syntax — scripts opt into "(?s)"/"(?m)" inline. An invalid pattern is
// a RegexError.
func Compile(pattern string) (*Pattern, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w: %w", pattern, err, scripterr.ErrRegex)
	}
	return &Pattern{re: re, hasGroup1: re.GroupCount() > 1}, nil
}

// Matches reports whether pattern matches anywhere in s (retain/discard).
func (p *Pattern) Matches(s string) (bool, error) {
	m, err := p.re.FindStringMatch(s)
	if err != nil {
		return false, fmt.Errorf("match: %w: %w", err, scripterr.ErrRegex)
	}
	return m != nil, nil
}

// DeleteAll removes all non-overlapping matches of pattern from s
// (delete). Matching is leftmost-first, as in any backtracking engine:
// at a given start position the first alternative that matches wins,
// which is not necessarily the longest one.
func (p *Pattern) DeleteAll(s string) (string, error) {
	result := make([]byte, 0, len(s))
	last := 0

	m, err := p.re.FindStringMatch(s)
	if err != nil {
		return "", fmt.Errorf("match: %w: %w", err, scripterr.ErrRegex)
	}
	for m != nil {
		g := m.Group
		result = append(result, s[last:g.Index]...)
		last = g.Index + g.Length
		m, err = p.re.FindNextMatch(m)
		if err != nil {
			return "", fmt.Errorf("match: %w: %w", err, scripterr.ErrRegex)
		}
	}
	result = append(result, s[last:]...)
	return string(result), nil
}

// ExtractAll returns, for each non-overlapping match of pattern in s, the
// content that match contributes: group 1 if the pattern defines at
// least one explicit capture group, otherwise group 0 (the whole
// match). A zero-match input contributes an empty slice.
func (p *Pattern) ExtractAll(s string) ([]string, error) {
	var out []string

	m, err := p.re.FindStringMatch(s)
	if err != nil {
		return nil, fmt.Errorf("match: %w: %w", err, scripterr.ErrRegex)
	}
	for m != nil {
		groups := m.Groups()
		if p.hasGroup1 && len(groups) > 1 {
			out = append(out, groups[1].String())
		} else {
			out = append(out, m.String())
		}
		m, err = p.re.FindNextMatch(m)
		if err != nil {
			return nil, fmt.Errorf("match: %w: %w", err, scripterr.ErrRegex)
		}
	}
	return out, nil
}
