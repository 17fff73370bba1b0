// Package engine implements the Script Executor: it constructs
// a fresh ExecutionState, registers the command library into a gopher-lua
// VM's global scope, evaluates the script source, and returns the
// resulting results and effects (or an error).
package engine

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/mkforsb/scrapeycat/internal/httpfetch"
	"github.com/mkforsb/scrapeycat/internal/loader"
	"github.com/mkforsb/scrapeycat/internal/state"
)

// Config holds executor-wide settings, built up through functional
// options.
type Config struct {
	Fetcher  httpfetch.Fetcher
	Loader   *loader.Loader
	MaxDepth int
	Timeout  time.Duration
}

// Option configures an Executor.
type Option func(*Config)

// DefaultConfig returns sensible defaults: the recommended run() depth
// cap and no wall-clock timeout.
func DefaultConfig() Config {
	return Config{
		MaxDepth: state.MaxRunDepth,
	}
}

// WithFetcher injects the HTTP fetcher used by get().
func WithFetcher(f httpfetch.Fetcher) Option {
	return func(c *Config) { c.Fetcher = f }
}

// WithLoader injects the script loader used by run().
func WithLoader(l *loader.Loader) Option {
	return func(c *Config) { c.Loader = l }
}

// WithMaxDepth overrides the run() recursion cap.
func WithMaxDepth(n int) Option {
	return func(c *Config) { c.MaxDepth = n }
}

// WithTimeout sets a per-script wall-clock budget. Zero means no
// deadline beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// Executor binds the command library into the host scripting runtime and
// evaluates scripts against it.
type Executor struct {
	cfg Config
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{cfg: cfg}
}

// Run evaluates source as a fresh ExecutionState at the given run()
// nesting depth (0 for a top-level invocation), seeded with the given
// positional/keyword script arguments (script_args). It returns the
// final state (Results + Effects) on success, or a wrapped scripterr on
// failure — in which case no effects should be dispatched by the caller.
func (e *Executor) Run(ctx context.Context, source string, positional []string, keyword map[string]string, depth int) (*state.State, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	st := state.New(depth, positional, keyword)

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	rc := &runContext{
		state:    st,
		ctx:      ctx,
		executor: e,
		depth:    depth,
	}
	registerCommands(L, rc)

	if err := L.DoString(source); err != nil {
		return nil, translateLuaErr(rc, err)
	}
	if rc.pendingErr != nil {
		return nil, rc.pendingErr
	}
	return st, nil
}
