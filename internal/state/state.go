// Package state defines the per-run hidden state model:
// ExecutionState, the ordered results list, the named-variable
// snapshots, the pending header list, and the queued Effect log.
//
// The DSL's defining characteristic is that commands look like free
// functions but mutate this ambient, script-scoped state. Nothing
// outside the command library (internal/commands) and the executor
// (internal/engine) should construct or mutate a State directly —
// scripts themselves never see it.
package state

import (
	"sort"
	"strconv"
)

// Effect is a queued side-effect descriptor produced by the effect()
// command: a free-form name plus positional and keyword arguments,
// comparable by structural equality for daemon dedup.
type Effect struct {
	Name       string
	Positional []string
	Keyword    map[string]string
}

// Equal reports whether two effects are structurally identical: same
// name, same positional args in order, same keyword map.
func (e Effect) Equal(other Effect) bool {
	if e.Name != other.Name {
		return false
	}
	if len(e.Positional) != len(other.Positional) {
		return false
	}
	for i := range e.Positional {
		if e.Positional[i] != other.Positional[i] {
			return false
		}
	}
	if len(e.Keyword) != len(other.Keyword) {
		return false
	}
	for k, v := range e.Keyword {
		if ov, ok := other.Keyword[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key returns a value suitable for use as a map key when deduplicating
// effects across firings. Two equal effects always produce the
// same key.
func (e Effect) Key() string {
	var b []byte
	b = append(b, e.Name...)
	b = append(b, 0)
	for _, p := range e.Positional {
		b = append(b, p...)
		b = append(b, 0)
	}
	b = append(b, 0xff)
	keys := make([]string, 0, len(e.Keyword))
	for k := range e.Keyword {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b = append(b, k...)
		b = append(b, '=')
		b = append(b, e.Keyword[k]...)
		b = append(b, 0)
	}
	return string(b)
}

// Header is a single pending HTTP header, order-preserving and
// duplicate-tolerant.
type Header struct {
	Name  string
	Value string
}

// MaxRunDepth is the recommended cap on run() recursion.
const MaxRunDepth = 16

// State is one ExecutionState: the hidden, script-scoped state a
// single script invocation sees and mutates. A fresh State is created
// for every top-level run and for every sub-script invoked via run().
type State struct {
	Results   []string
	Variables map[string][]string
	Headers   []Header
	Effects   []Effect
	Aborted   bool
	Depth     int
}

// New creates an empty ExecutionState, optionally seeded with the
// positional/keyword script arguments ("script_args"): positional
// args become variables "1", "2", ... and keyword args become variables
// by name. depth is this invocation's run() nesting depth (0 for a
// top-level invocation, one more than the caller's for a sub-script).
func New(depth int, positional []string, keyword map[string]string) *State {
	s := &State{
		Variables: make(map[string][]string),
		Depth:     depth,
	}
	for i, v := range positional {
		s.Variables[strconv.Itoa(i+1)] = []string{v}
	}
	for k, v := range keyword {
		s.Variables[k] = []string{v}
	}
	return s
}

// Store snapshots the current Results into Variables[name], overwriting
// any prior value under that name.
func (s *State) Store(name string) {
	snapshot := make([]string, len(s.Results))
	copy(snapshot, s.Results)
	s.Variables[name] = snapshot
}

// Load appends variables[name] to Results in order. The bool result is
// false if the variable is unbound, which callers treat as fatal.
func (s *State) Load(name string) bool {
	v, ok := s.Variables[name]
	if !ok {
		return false
	}
	s.Results = append(s.Results, v...)
	return true
}

// AppendSubResults merges a completed sub-script's final results and
// effects into this state, in that order, so that a sub-run's effects
// appear atomically after any effects queued before the run() call.
func (s *State) AppendSubResults(results []string, effects []Effect) {
	s.Results = append(s.Results, results...)
	s.Effects = append(s.Effects, effects...)
}

// QueueEffect appends an Effect record (effect command).
func (s *State) QueueEffect(e Effect) {
	s.Effects = append(s.Effects, e)
}
