package engine

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/mkforsb/scrapeycat/internal/commands"
	"github.com/mkforsb/scrapeycat/internal/httpfetch"
	"github.com/mkforsb/scrapeycat/internal/scripterr"
	"github.com/mkforsb/scrapeycat/internal/state"
	"github.com/mkforsb/scrapeycat/internal/substitute"
)

// runContext is the ambient state one Run call closes its Lua bindings
// over: the ExecutionState being built, the context governing
// cancellation/deadline, the Executor supplying the fetcher/loader/depth
// cap, and the nesting depth of this invocation.
//
// pendingErr recovers the original Go sentinel error across the L.DoString
// boundary: L.RaiseError stringifies whatever it's given, so a binding
// that wants to fail with a scripterr sentinel stashes it here before
// calling L.RaiseError, and translateLuaErr consults it first.
type runContext struct {
	state      *state.State
	ctx        context.Context
	executor   *Executor
	depth      int
	pendingErr error
}

// lookup builds a substitute.Lookup against this run's current variables.
func (rc *runContext) lookup() substitute.Lookup {
	return substitute.FromVariables(rc.state.Variables)
}

// substArg applies variable substitution to one command argument,
// raising a Lua error (while stashing the sentinel) on failure.
func (rc *runContext) substArg(L *lua.LState, s string) string {
	out, err := substitute.Expand(s, rc.lookup())
	if err != nil {
		rc.fail(L, err)
	}
	return out
}

// fail stashes err as the pending sentinel and raises it into Lua. It
// never returns (L.RaiseError panics internally to unwind to DoString).
func (rc *runContext) fail(L *lua.LState, err error) {
	rc.pendingErr = err
	L.RaiseError("%s", err.Error())
}

// translateLuaErr converts an error returned by L.DoString into a
// scripterr-wrapped error, preferring the stashed sentinel (which carries
// the original errors.Is-checkable kind) over the lossy Lua message.
func translateLuaErr(rc *runContext, luaErr error) error {
	if rc.pendingErr != nil {
		return rc.pendingErr
	}
	if apiErr, ok := luaErr.(*lua.ApiError); ok && apiErr.Type == lua.ApiErrorSyntax {
		return fmt.Errorf("%w: %w", scripterr.ErrParse, luaErr)
	}
	return fmt.Errorf("%w: %w", scripterr.ErrRuntime, luaErr)
}

// registerCommands installs every DSL command into L's global scope,
// each one a closure over rc bound into the host runtime's global
// scope so that commands read as free functions from script text.
func registerCommands(L *lua.LState, rc *runContext) {
	reg := func(name string, fn lua.LGFunction) {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	// Pure per-entry and whole-list commands: thin adapters over
	// internal/commands, substituting arguments where needed.
	reg("append", func(L *lua.LState) int {
		commands.Append(rc.state, L.CheckString(1))
		return 0
	})
	reg("prepend", func(L *lua.LState) int {
		commands.Prepend(rc.state, L.CheckString(1))
		return 0
	})
	reg("delete", func(L *lua.LState) int {
		if err := commands.Delete(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("retain", func(L *lua.LState) int {
		if err := commands.Retain(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("discard", func(L *lua.LState) int {
		if err := commands.Discard(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("extract", func(L *lua.LState) int {
		if err := commands.Extract(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("select", func(L *lua.LState) int {
		if err := commands.Select(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("drop", func(L *lua.LState) int {
		commands.Drop(rc.state, L.CheckInt(1))
		return 0
	})
	reg("first", func(L *lua.LState) int {
		commands.First(rc.state)
		return 0
	})
	reg("clear", func(L *lua.LState) int {
		commands.Clear(rc.state)
		return 0
	})
	reg("store", func(L *lua.LState) int {
		commands.Store(rc.state, L.CheckString(1))
		return 0
	})
	reg("load", func(L *lua.LState) int {
		if err := commands.Load(rc.state, L.CheckString(1)); err != nil {
			rc.fail(L, err)
		}
		return 0
	})
	reg("abortIfEmpty", func(L *lua.LState) int {
		commands.AbortIfEmpty(rc.state)
		return 0
	})
	reg("var", func(L *lua.LState) int {
		v, err := commands.Var(rc.state, L.CheckString(1))
		if err != nil {
			rc.fail(L, err)
		}
		L.Push(lua.LString(v))
		return 1
	})
	reg("list", func(L *lua.LState) int {
		v, err := commands.List(rc.state, L.CheckString(1))
		if err != nil {
			rc.fail(L, err)
		}
		L.Push(stringsToTable(L, v))
		return 1
	})
	reg("env", func(L *lua.LState) int {
		v, err := commands.Env(L.CheckString(1))
		if err != nil {
			rc.fail(L, err)
		}
		L.Push(lua.LString(v))
		return 1
	})

	// HTTP commands.
	reg("header", func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		name := L.CheckString(1)
		value := rc.substArg(L, L.CheckString(2))
		commands.AddHeader(rc.state, name, value)
		return 0
	})
	reg("clearheaders", func(L *lua.LState) int {
		commands.ClearHeaders(rc.state)
		return 0
	})
	reg("get", makeGet(rc))

	// Host-callback commands.
	reg("map", makeMap(rc))
	reg("apply", makeApply(rc))

	// Cross-script and effect commands.
	reg("run", makeRun(rc))
	reg("effect", makeEffect(rc))
}

// makeGet binds get(url): resolves headers, substitutes the URL, fetches
// synchronously (blocking the OS thread backing this script — gopher-lua
// has no native coroutine suspension across a Go call), and appends the
// body as a new result.
func makeGet(rc *runContext) lua.LGFunction {
	return func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		if rc.executor.cfg.Fetcher == nil {
			rc.fail(L, fmt.Errorf("get: no fetcher configured: %w", scripterr.ErrRuntime))
			return 0
		}
		url := rc.substArg(L, L.CheckString(1))

		headers := make([]httpfetch.Header, len(rc.state.Headers))
		for i, h := range rc.state.Headers {
			headers[i] = httpfetch.Header{Name: h.Name, Value: h.Value}
		}

		body, err := rc.executor.cfg.Fetcher.Fetch(rc.ctx, url, headers)
		if err != nil {
			rc.fail(L, fmt.Errorf("get %q: %w: %w", url, scripterr.ErrHTTP, err))
			return 0
		}
		rc.state.Results = append(rc.state.Results, body)
		return 0
	}
}

// makeMap binds map(fn): fn(r) must return a string for every current
// result; any other return type is a fatal RuntimeError.
func makeMap(rc *runContext) lua.LGFunction {
	return func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		fn := L.CheckFunction(1)
		for i, r := range rc.state.Results {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(r)); err != nil {
				rc.fail(L, fmt.Errorf("map: %w: %w", err, scripterr.ErrRuntime))
				return 0
			}
			ret := L.Get(-1)
			L.Pop(1)
			s, ok := ret.(lua.LString)
			if !ok {
				rc.fail(L, fmt.Errorf("map: fn must return a string, got %s: %w", ret.Type(), scripterr.ErrRuntime))
				return 0
			}
			rc.state.Results[i] = string(s)
		}
		return 0
	}
}

// makeApply binds apply(fn): fn(current_results) must return an ordered
// collection of strings (a Lua table) replacing the entire results list.
func makeApply(rc *runContext) lua.LGFunction {
	return func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		fn := L.CheckFunction(1)
		arg := stringsToTable(L, rc.state.Results)
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
			rc.fail(L, fmt.Errorf("apply: %w: %w", err, scripterr.ErrRuntime))
			return 0
		}
		ret := L.Get(-1)
		L.Pop(1)
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			rc.fail(L, fmt.Errorf("apply: fn must return a table of strings, got %s: %w", ret.Type(), scripterr.ErrRuntime))
			return 0
		}
		out, err := tableToStrings(tbl)
		if err != nil {
			rc.fail(L, fmt.Errorf("apply: %w", err))
			return 0
		}
		rc.state.Results = out
		return 0
	}
}

// makeRun binds run(name, ...): positional string args followed by an
// optional trailing table of keyword args (Lua has no native kwarg
// syntax, so run("temperature", {location="Sweden/Stockholm"}) is the
// convention — positional args may also be supplied directly as
// "1","2",... keys of that same table, matching effect()'s argument
// shape). Constructs a fresh sub-ExecutionState via the Executor,
// enforcing the depth cap, and appends the sub-run's results/effects
// atomically on success (cross-script call as fresh context).
func makeRun(rc *runContext) lua.LGFunction {
	return func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		if rc.executor.cfg.Loader == nil {
			rc.fail(L, fmt.Errorf("run: no loader configured: %w", scripterr.ErrRuntime))
			return 0
		}
		name := rc.substArg(L, L.CheckString(1))

		positional, keyword := collectCallArgs(L, 2)
		for i, p := range positional {
			positional[i] = rc.substArg(L, p)
		}
		for k, v := range keyword {
			keyword[k] = rc.substArg(L, v)
		}

		if rc.depth+1 >= rc.executor.cfg.MaxDepth {
			rc.fail(L, fmt.Errorf("run %q at depth %d: %w", name, rc.depth, scripterr.ErrDepthExceeded))
			return 0
		}

		source, _, err := rc.executor.cfg.Loader.Load(name)
		if err != nil {
			rc.fail(L, err)
			return 0
		}

		sub, err := rc.executor.Run(rc.ctx, source, positional, keyword, rc.depth+1)
		if err != nil {
			rc.fail(L, err)
			return 0
		}
		rc.state.AppendSubResults(sub.Results, sub.Effects)
		return 0
	}
}

// makeEffect binds effect(name, {positional..., keyword=...}): if no
// positional args are supplied, the current results list substitutes as
// positional args (effect command).
func makeEffect(rc *runContext) lua.LGFunction {
	return func(L *lua.LState) int {
		if rc.state.Aborted {
			return 0
		}
		name := rc.substArg(L, L.CheckString(1))

		positional, keyword := collectCallArgs(L, 2)
		for i, p := range positional {
			positional[i] = rc.substArg(L, p)
		}
		for k, v := range keyword {
			keyword[k] = rc.substArg(L, v)
		}

		if len(positional) == 0 {
			positional = append([]string{}, rc.state.Results...)
		}

		rc.state.QueueEffect(state.Effect{
			Name:       name,
			Positional: positional,
			Keyword:    keyword,
		})
		return 0
	}
}

// collectCallArgs reads run()/effect()'s variadic-ish argument
// convention starting at Lua stack index `from`: a trailing table
// argument's array part supplies positional args (in addition to any
// plain string arguments that precede it) and its hash part supplies
// keyword args. Both a bare table and a mix of string args + table are
// accepted.
func collectCallArgs(L *lua.LState, from int) (positional []string, keyword map[string]string) {
	keyword = make(map[string]string)
	top := L.GetTop()
	for i := from; i <= top; i++ {
		v := L.Get(i)
		switch t := v.(type) {
		case lua.LString:
			positional = append(positional, string(t))
		case *lua.LTable:
			n := t.Len()
			for j := 1; j <= n; j++ {
				positional = append(positional, lua.LVAsString(t.RawGetInt(j)))
			}
			t.ForEach(func(k, val lua.LValue) {
				if ks, ok := k.(lua.LString); ok {
					keyword[string(ks)] = lua.LVAsString(val)
				}
			})
		}
	}
	return positional, keyword
}

// stringsToTable builds a 1-indexed Lua array table from a Go string
// slice, for list()/apply()'s host-native ordered collection.
func stringsToTable(L *lua.LState, ss []string) *lua.LTable {
	t := L.NewTable()
	for i, s := range ss {
		t.RawSetInt(i+1, lua.LString(s))
	}
	return t
}

// tableToStrings reads back apply()'s returned table as an ordered
// string slice, failing if any array-part entry isn't a string.
func tableToStrings(t *lua.LTable) ([]string, error) {
	n := t.Len()
	out := make([]string, n)
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		s, ok := v.(lua.LString)
		if !ok {
			return nil, fmt.Errorf("element %d: not a string (got %s): %w", i, v.Type(), scripterr.ErrRuntime)
		}
		out[i-1] = string(s)
	}
	return out, nil
}
