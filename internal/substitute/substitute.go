// Package substitute implements variable substitution: textual
// "${name}" expansion against the current run's variables, falling back
// to the process environment, applied at command-argument time (not at
// script-parse time) so that a mid-pipeline store() can change
// what a later ${name} resolves to.
package substitute

import (
	"fmt"
	"os"
	"strings"

	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

// nameChar reports whether r is valid inside a ${NAME} reference, per
// the grammar [A-Za-z_][A-Za-z0-9_]*.
func nameChar(r byte, first bool) bool {
	if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
		return true
	}
	if !first && r >= '0' && r <= '9' {
		return true
	}
	return false
}

// Lookup resolves one variable name. It must first consult the run's
// current variables (joined by single spaces), then the process
// environment, and report "found=false" if neither has a binding.
type Lookup func(name string) (value string, found bool)

// FromVariables builds a Lookup backed by a run's variable map,
// joining each variable's string sequence with single-space separators
// and falling back to os.LookupEnv.
func FromVariables(vars map[string][]string) Lookup {
	return func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return strings.Join(v, " "), true
		}
		return os.LookupEnv(name)
	}
}

// Expand replaces every "${NAME}" in s using lookup. An unmatched "$"
// (not followed by "{") is passed through literally. A referenced name
// with no binding anywhere is a fatal MissingVariable error.
func Expand(s string, lookup Lookup) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' || i+1 >= len(s) || s[i+1] != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		// Find the closing brace of ${...}.
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			// No closing brace: treat "${" literally, as it can never
			// form a valid reference.
			b.WriteByte(c)
			i++
			continue
		}
		name := s[i+2 : i+2+end]
		if !isValidName(name) {
			// Not a well-formed reference; emit literally and continue
			// just past the '$'.
			b.WriteByte(c)
			i++
			continue
		}

		value, found := lookup(name)
		if !found {
			return "", fmt.Errorf("substitute ${%s}: %w", name, scripterr.ErrMissingVariable)
		}
		b.WriteString(value)
		i += 2 + end + 1
	}

	return b.String(), nil
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !nameChar(name[i], i == 0) {
			return false
		}
	}
	return true
}
