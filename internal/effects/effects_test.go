package effects

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkforsb/scrapeycat/internal/state"
)

// print effect with no args (positional already folded in by the
// engine's effect() binding, so this package only sees the join+eol).
func TestPrintHandler_JoinsWithSpaceAndDefaultEOL(t *testing.T) {
	var buf bytes.Buffer
	h := PrintHandler(&buf)
	err := h(context.Background(), state.Effect{
		Name:       "print",
		Positional: []string{"hello", "world"},
		Keyword:    map[string]string{},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", buf.String())
}

func TestPrintHandler_CustomEOL(t *testing.T) {
	var buf bytes.Buffer
	h := PrintHandler(&buf)
	err := h(context.Background(), state.Effect{
		Name:       "print",
		Positional: []string{"a", "b"},
		Keyword:    map[string]string{"eol": "|"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a b|", buf.String())
}

func TestDispatcher_UnknownEffectIsNotAnError(t *testing.T) {
	d := NewDispatcher(&bytes.Buffer{})
	err := d.Dispatch(context.Background(), state.Effect{Name: "unregistered"})
	require.NoError(t, err)
}

func TestDispatcher_RoutesToRegisteredHandler(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(&buf)
	err := d.Dispatch(context.Background(), state.Effect{Name: "print", Positional: []string{"x"}, Keyword: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, "x\n", buf.String())
}
