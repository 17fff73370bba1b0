// Package daemon implements the Daemon/Scheduler: a
// robfig/cron-driven loop that fires scheduled jobs concurrently, each
// against its own fresh ExecutionState, dispatching queued effects only
// on success and deduplicating structurally-identical effects across
// consecutive firings of the same job.
//
// A single *cron.Cron drives a slice of named job entries, each
// carrying its own mutex-guarded rolling dedup state.
package daemon

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mkforsb/scrapeycat/internal/config"
	"github.com/mkforsb/scrapeycat/internal/effects"
	"github.com/mkforsb/scrapeycat/internal/engine"
	"github.com/mkforsb/scrapeycat/internal/logger"
	"github.com/mkforsb/scrapeycat/internal/state"
)

// jobEntry is one scheduled job plus its rolling dedup state.
type jobEntry struct {
	id    string
	job   config.Job
	mu    sync.Mutex
	// lastEffects is the full set of effects emitted by the most recent
	// successful firing, keyed by Effect.Key(), regardless of whether
	// dedup suppressed any of them from dispatch.
	lastEffects map[string]struct{}
}

// Scheduler runs a daemon-mode config's jobs forever.
type Scheduler struct {
	cron     *cron.Cron
	executor runner
	dispatch *effects.Dispatcher
	loader   scriptLoader
	entries  []*jobEntry
}

// scriptLoader is the subset of *loader.Loader the daemon needs,
// abstracted so it can be swapped out in tests.
type scriptLoader interface {
	Load(name string) (source string, path string, err error)
}

// runner is the subset of *engine.Executor the daemon needs, abstracted
// so tests can fake firing sequences deterministically.
type runner interface {
	Run(ctx context.Context, source string, positional []string, keyword map[string]string, depth int) (*state.State, error)
}

// New builds a Scheduler from a validated Config. It registers every
// suites.*.jobs entry with the cron scheduler but does not start it.
func New(cfg *config.Config, ex *engine.Executor, dispatch *effects.Dispatcher, ld scriptLoader) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		executor: ex,
		dispatch: dispatch,
		loader:   ld,
	}

	for suiteName, suite := range cfg.Suites {
		for i, job := range suite.Jobs {
			entry := &jobEntry{
				id:          config.JobID(suiteName, i, job),
				job:         job,
				lastEffects: make(map[string]struct{}),
			}
			s.entries = append(s.entries, entry)

			if _, err := s.cron.AddFunc(job.Schedule, s.fireFunc(entry)); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then stops
// scheduling new firings and waits for in-flight ones to finish. Those
// firings run under their own background context, so they complete and
// dispatch their effects as usual.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// fireFunc returns the cron callback for one job entry. robfig/cron
// invokes due entries concurrently (each in its own goroutine), which
// is all the parallelism jobs need without any extra plumbing here.
func (s *Scheduler) fireFunc(entry *jobEntry) func() {
	return func() {
		s.fire(context.Background(), entry)
	}
}

// fire executes one job firing: loads and runs its script, and on
// success dispatches its (deduplicated, if requested) effects. Failures
// are logged and isolated to this firing.
func (s *Scheduler) fire(ctx context.Context, entry *jobEntry) {
	source, _, err := s.loader.Load(entry.job.Script)
	if err != nil {
		logger.Error("daemon: failed to load script", "job", entry.id, "script", entry.job.Script, "error", err)
		return
	}

	st, err := s.executor.Run(ctx, source, entry.job.Args, entry.job.Kwargs, 0)
	if err != nil {
		logger.Error("daemon: script run failed", "job", entry.id, "script", entry.job.Script, "error", err)
		return
	}

	toDispatch := st.Effects
	entry.mu.Lock()
	if entry.job.Dedup {
		toDispatch = filterDedup(st.Effects, entry.lastEffects)
	}
	entry.lastEffects = effectSet(st.Effects)
	entry.mu.Unlock()

	for _, e := range toDispatch {
		if err := s.dispatch.Dispatch(ctx, e); err != nil {
			logger.Error("daemon: effect dispatch failed", "job", entry.id, "effect", e.Name, "error", err)
		}
	}
}

// effectSet builds a lookup keyed by Effect.Key() for dedup comparison.
func effectSet(effs []state.Effect) map[string]struct{} {
	out := make(map[string]struct{}, len(effs))
	for _, e := range effs {
		out[e.Key()] = struct{}{}
	}
	return out
}

// filterDedup returns the effects of effs not present (by structural
// equality, via Key()) in prev — the previous firing's emitted set.
func filterDedup(effs []state.Effect, prev map[string]struct{}) []state.Effect {
	var out []state.Effect
	for _, e := range effs {
		if _, ok := prev[e.Key()]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}
