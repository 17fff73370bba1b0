package daemon

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkforsb/scrapeycat/internal/config"
	"github.com/mkforsb/scrapeycat/internal/effects"
	"github.com/mkforsb/scrapeycat/internal/state"
)

type fakeLoader struct{}

func (fakeLoader) Load(name string) (string, string, error) {
	return "-- " + name, name, nil
}

// fakeRunner returns the next queued state/error pair on each call, in
// order, letting tests script a sequence of firings deterministically.
type fakeRunner struct {
	results []*state.State
	errs    []error
	n       int
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ []string, _ map[string]string, _ int) (*state.State, error) {
	i := f.n
	f.n++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func notifyEffect(arg string) state.Effect {
	return state.Effect{Name: "notify", Positional: []string{arg}, Keyword: map[string]string{}}
}

// daemon dedup across three firings.
func TestFire_DedupAcrossConsecutiveFirings(t *testing.T) {
	var buf bytes.Buffer
	fr := &fakeRunner{
		results: []*state.State{
			{Effects: []state.Effect{notifyEffect("X")}},
			{Effects: []state.Effect{notifyEffect("X")}},
			{Effects: []state.Effect{notifyEffect("Y")}},
		},
	}
	dispatched := 0
	d := effects.NewDispatcher(&buf)
	d.Register("notify", func(_ context.Context, e state.Effect) error {
		dispatched++
		return nil
	})

	entry := &jobEntry{
		id:          "weather/0",
		job:         config.Job{Script: "temperature", Dedup: true},
		lastEffects: make(map[string]struct{}),
	}
	s := &Scheduler{executor: fr, dispatch: d, loader: fakeLoader{}}

	s.fire(context.Background(), entry)
	assert.Equal(t, 1, dispatched)

	s.fire(context.Background(), entry)
	assert.Equal(t, 1, dispatched, "second firing emits the same effect and should be suppressed")

	s.fire(context.Background(), entry)
	assert.Equal(t, 2, dispatched, "third firing emits a distinct effect and should dispatch")
}

func TestFire_DedupFalseAlwaysDispatches(t *testing.T) {
	var buf bytes.Buffer
	fr := &fakeRunner{
		results: []*state.State{
			{Effects: []state.Effect{notifyEffect("X")}},
			{Effects: []state.Effect{notifyEffect("X")}},
		},
	}
	dispatched := 0
	d := effects.NewDispatcher(&buf)
	d.Register("notify", func(_ context.Context, e state.Effect) error {
		dispatched++
		return nil
	})

	entry := &jobEntry{job: config.Job{Script: "temperature", Dedup: false}, lastEffects: make(map[string]struct{})}
	s := &Scheduler{executor: fr, dispatch: d, loader: fakeLoader{}}

	s.fire(context.Background(), entry)
	s.fire(context.Background(), entry)
	assert.Equal(t, 2, dispatched)
}

func TestFire_RunErrorDispatchesNoEffects(t *testing.T) {
	var buf bytes.Buffer
	fr := &fakeRunner{
		results: []*state.State{nil},
		errs:    []error{assertErr{}},
	}
	dispatched := 0
	d := effects.NewDispatcher(&buf)
	d.Register("notify", func(_ context.Context, e state.Effect) error {
		dispatched++
		return nil
	})

	entry := &jobEntry{job: config.Job{Script: "broken"}, lastEffects: make(map[string]struct{})}
	s := &Scheduler{executor: fr, dispatch: d, loader: fakeLoader{}}

	s.fire(context.Background(), entry)
	assert.Equal(t, 0, dispatched)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestFilterDedup(t *testing.T) {
	prev := map[string]struct{}{notifyEffect("X").Key(): {}}
	out := filterDedup([]state.Effect{notifyEffect("X"), notifyEffect("Y")}, prev)
	require.Len(t, out, 1)
	assert.Equal(t, "Y", out[0].Positional[0])
}
