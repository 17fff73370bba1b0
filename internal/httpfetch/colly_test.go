package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollyFetcher_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Sweden", r.Header.Get("X-Region"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := NewColly(DefaultConfig())
	body, err := f.Fetch(context.Background(), srv.URL, []Header{{Name: "X-Region", Value: "Sweden"}})
	require.NoError(t, err)
	assert.Equal(t, "hello world", body)
}

func TestCollyFetcher_Fetch_NonTwoXXIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	f := NewColly(DefaultConfig())
	_, err := f.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)
}

func TestCollyFetcher_Fetch_DuplicateHeaderNamesPassThrough(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Values("X-Tag")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewColly(DefaultConfig())
	_, err := f.Fetch(context.Background(), srv.URL, []Header{
		{Name: "X-Tag", Value: "a"},
		{Name: "X-Tag", Value: "b"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}
