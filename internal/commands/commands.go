// Package commands implements the pure, state-mutating half of the DSL
// command library: the per-entry pipeline commands and the
// whole-list commands that don't need I/O or host-runtime callbacks.
// The impure commands (get, run, map, apply, effect — anything that
// touches the network, the loader, or calls back into the host
// scripting runtime) are bound directly in internal/engine, which has
// the context these need; everything here only ever touches a
// *state.State and is deterministic given its inputs (property 1).
//
// Every state-mutating function is a no-op once state.Aborted is true:
// once a script aborts, commands return immediately without observable
// effect. The guard lives here, so the engine's Lua bindings for these
// commands and direct callers (e.g. tests) need no check of their own.
// The read-only helpers Var, List and Env are not gated on Aborted.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mkforsb/scrapeycat/internal/regexeng"
	"github.com/mkforsb/scrapeycat/internal/scripterr"
	"github.com/mkforsb/scrapeycat/internal/state"
)

// Append replaces each result r with r+suffix.
func Append(s *state.State, suffix string) {
	if s.Aborted {
		return
	}
	for i, r := range s.Results {
		s.Results[i] = r + suffix
	}
}

// Prepend replaces each result r with prefix+r.
func Prepend(s *state.State, prefix string) {
	if s.Aborted {
		return
	}
	for i, r := range s.Results {
		s.Results[i] = prefix + r
	}
}

// Delete replaces each result with itself after removing all
// non-overlapping matches of pattern.
func Delete(s *state.State, pattern string) error {
	if s.Aborted {
		return nil
	}
	p, err := regexeng.Compile(pattern)
	if err != nil {
		return err
	}
	for i, r := range s.Results {
		out, err := p.DeleteAll(r)
		if err != nil {
			return err
		}
		s.Results[i] = out
	}
	return nil
}

// Retain drops results that contain no match for pattern.
func Retain(s *state.State, pattern string) error {
	if s.Aborted {
		return nil
	}
	p, err := regexeng.Compile(pattern)
	if err != nil {
		return err
	}
	kept := s.Results[:0]
	for _, r := range s.Results {
		ok, err := p.Matches(r)
		if err != nil {
			return err
		}
		if ok {
			kept = append(kept, r)
		}
	}
	s.Results = kept
	return nil
}

// Discard drops results that contain at least one match for pattern.
func Discard(s *state.State, pattern string) error {
	if s.Aborted {
		return nil
	}
	p, err := regexeng.Compile(pattern)
	if err != nil {
		return err
	}
	kept := s.Results[:0]
	for _, r := range s.Results {
		ok, err := p.Matches(r)
		if err != nil {
			return err
		}
		if !ok {
			kept = append(kept, r)
		}
	}
	s.Results = kept
	return nil
}

// Extract replaces the entire results list with the concatenation, in
// order, of each old result's match-sequence. A result that
// yields zero matches contributes nothing.
func Extract(s *state.State, pattern string) error {
	if s.Aborted {
		return nil
	}
	p, err := regexeng.Compile(pattern)
	if err != nil {
		return err
	}
	var next []string
	for _, r := range s.Results {
		matches, err := p.ExtractAll(r)
		if err != nil {
			return err
		}
		next = append(next, matches...)
	}
	s.Results = next
	return nil
}

// Select replaces each result (treated as an HTML fragment) with the
// concatenation of the trimmed text content of every element matching
// cssSelector — the structure-aware sibling of Extract.
func Select(s *state.State, cssSelector string) error {
	if s.Aborted {
		return nil
	}
	var next []string
	for _, r := range s.Results {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(r))
		if err != nil {
			return fmt.Errorf("select %q: %w: %w", cssSelector, err, scripterr.ErrRuntime)
		}
		var b strings.Builder
		doc.Find(cssSelector).Each(func(_ int, sel *goquery.Selection) {
			b.WriteString(strings.TrimSpace(sel.Text()))
		})
		next = append(next, b.String())
	}
	s.Results = next
	return nil
}

// Drop removes the first n results; n >= count yields empty.
func Drop(s *state.State, n int) {
	if s.Aborted {
		return
	}
	if n < 0 {
		n = 0
	}
	if n >= len(s.Results) {
		s.Results = nil
		return
	}
	s.Results = s.Results[n:]
}

// First keeps only the first result.
func First(s *state.State) {
	if s.Aborted {
		return
	}
	if len(s.Results) > 1 {
		s.Results = s.Results[:1]
	}
}

// Clear sets results to empty.
func Clear(s *state.State) {
	if s.Aborted {
		return
	}
	s.Results = nil
}

// Store snapshots the current results into variables[name].
func Store(s *state.State, name string) {
	if s.Aborted {
		return
	}
	s.Store(name)
}

// Load appends variables[name] to results in order. Missing variable is
// fatal.
func Load(s *state.State, name string) error {
	if s.Aborted {
		return nil
	}
	if !s.Load(name) {
		return fmt.Errorf("load %q: %w", name, scripterr.ErrMissingVariable)
	}
	return nil
}

// AbortIfEmpty sets Aborted if results is empty. Not an error: a
// clean early termination that still emits effects queued before it.
func AbortIfEmpty(s *state.State) {
	if s.Aborted {
		return
	}
	if len(s.Results) == 0 {
		s.Aborted = true
	}
}

// AddHeader appends (name, value) to headers. Callers must apply
// variable substitution to value before calling this.
func AddHeader(s *state.State, name, value string) {
	if s.Aborted {
		return
	}
	s.Headers = append(s.Headers, state.Header{Name: name, Value: value})
}

// ClearHeaders empties headers.
func ClearHeaders(s *state.State) {
	if s.Aborted {
		return
	}
	s.Headers = nil
}

// Var returns variables[name] joined with single-space separators.
// Missing variable is fatal. Read-only helpers run even when Aborted,
// since they don't mutate state and a script may legitimately want to
// inspect results after an abort in a sub-script context; var/list are
// read-only helpers, not commands, so they are never gated on Aborted.
func Var(s *state.State, name string) (string, error) {
	v, ok := s.Variables[name]
	if !ok {
		return "", fmt.Errorf("var %q: %w", name, scripterr.ErrMissingVariable)
	}
	return strings.Join(v, " "), nil
}

// List returns variables[name] as an ordered slice. Missing variable is
// fatal.
func List(s *state.State, name string) ([]string, error) {
	v, ok := s.Variables[name]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", name, scripterr.ErrMissingVariable)
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, nil
}

// Env returns the named process environment variable directly, distinct
// from ${NAME} substitution's variables-then-environment fallback. An
// unset variable is fatal, for the same reason a missing var()/list()
// binding is.
func Env(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("env %q: %w", name, scripterr.ErrMissingVariable)
	}
	return v, nil
}
