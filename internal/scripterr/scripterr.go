// Package scripterr defines the error kinds: sentinel errors that
// every layer of the engine wraps its failures in, so callers can
// distinguish fatal reasons with errors.Is without depending on string
// matching.
package scripterr

import "errors"

var (
	// ErrScriptNotFound means the loader could not resolve a script name
	// to source text in any configured directory.
	ErrScriptNotFound = errors.New("script not found")
	// ErrParse means the host scripting runtime could not parse the
	// script source.
	ErrParse = errors.New("script parse error")
	// ErrRuntime means the host scripting runtime raised during
	// execution, including type mismatches from map/apply.
	ErrRuntime = errors.New("script runtime error")
	// ErrMissingVariable means var/list/substitution found no binding.
	ErrMissingVariable = errors.New("missing variable")
	// ErrHTTP means a network failure or non-2xx HTTP response.
	ErrHTTP = errors.New("http error")
	// ErrRegex means an invalid regular expression pattern.
	ErrRegex = errors.New("invalid regular expression")
	// ErrDepthExceeded means a run() call chain exceeded the recursion cap.
	ErrDepthExceeded = errors.New("run depth exceeded")
	// ErrConfig means the daemon configuration file is invalid.
	ErrConfig = errors.New("invalid configuration")
)

// ExitCode maps an engine error to the CLI exit code. Errors not
// recognized as config errors are treated as runtime errors (exit 1);
// callers should check config errors before invoking a run.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrConfig) {
		return 3
	}
	return 1
}
