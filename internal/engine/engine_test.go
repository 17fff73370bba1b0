package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkforsb/scrapeycat/internal/httpfetch"
	"github.com/mkforsb/scrapeycat/internal/loader"
	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

type fakeFetcher struct {
	body string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ []httpfetch.Header) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

// BBC-style feed pipeline, mocked HTTP.
func TestRun_BBCPipeline(t *testing.T) {
	body := `<title><![CDATA[A]]></title><title><![CDATA[B]]></title><title><![CDATA[C]]></title><title><![CDATA[D]]></title>`
	f := &fakeFetcher{body: body}
	e := New(WithFetcher(f))

	src := `
get("http://example.test/feed")
extract("(?s)<title>(.+?)</title>")
drop(2)
extract("(?s)CDATA\\[(.+?)\\]\\]")
first()
`
	st, err := e.Run(context.Background(), src, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, st.Results)
	assert.Equal(t, []string{"http://example.test/feed"}, f.urls)
}

func TestRun_GetNonTwoXXIsFatal(t *testing.T) {
	f := &fakeFetcher{err: httpfetch.ErrHTTPStatus}
	e := New(WithFetcher(f))

	_, err := e.Run(context.Background(), `get("http://example.test")`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrHTTP)
}

func TestRun_GetWithoutFetcherIsRuntimeError(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), `get("http://example.test")`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrRuntime)
}

// run() sub-script argument passing.
func TestRun_SubScriptArgPassing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temperature.scrape"), []byte(`
load("location")
delete(".+")
append("11 °C")
`), 0o644))

	l := loader.New([]string{dir}, []string{"${NAME}.scrape"})
	e := New(WithLoader(l))

	src := `run("temperature", {location="Sweden/Stockholm"})`
	st, err := e.Run(context.Background(), src, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"11 °C"}, st.Results)
}

func TestRun_SubScriptDoesNotInheritVariables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "child.scrape"), []byte(`
append(var("secret"))
`), 0o644))

	l := loader.New([]string{dir}, []string{"${NAME}.scrape"})
	e := New(WithLoader(l))

	src := `
store("secret")
run("child")
`
	_, err := e.Run(context.Background(), src, []string{"leaked"}, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrMissingVariable)
}

func TestRun_DepthExceededIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "self.scrape"), []byte(`run("self")`), 0o644))

	l := loader.New([]string{dir}, []string{"${NAME}.scrape"})
	e := New(WithLoader(l), WithMaxDepth(4))

	_, err := e.Run(context.Background(), `run("self")`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrDepthExceeded)
}

// abortIfEmpty suppresses later effects.
func TestRun_AbortIfEmpty_EmitsNoEffectsAfterAbort(t *testing.T) {
	e := New()
	src := `
extract("Diego")
abortIfEmpty()
effect("notify", "skipped")
`
	st, err := e.Run(context.Background(), src, []string{"Alice"}, nil, 0)
	require.NoError(t, err)
	assert.True(t, st.Aborted)
	assert.Empty(t, st.Effects)
}

// print effect with no positional args uses current results.
func TestRun_EffectWithNoPositionalUsesCurrentResults(t *testing.T) {
	e := New()
	src := `
load("1")
load("2")
effect("print")
`
	st, err := e.Run(context.Background(), src, []string{"hello", "world"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, st.Effects, 1)
	assert.Equal(t, "print", st.Effects[0].Name)
	assert.Equal(t, []string{"hello", "world"}, st.Effects[0].Positional)
}

func TestRun_EffectWithKeywordArgsAndSubstitution(t *testing.T) {
	t.Setenv("CITY", "Stockholm")
	e := New()
	src := `effect("notify", {"alert", title="${CITY}"})`
	st, err := e.Run(context.Background(), src, nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, st.Effects, 1)
	assert.Equal(t, []string{"alert"}, st.Effects[0].Positional)
	assert.Equal(t, "Stockholm", st.Effects[0].Keyword["title"])
}

func TestRun_MapTransformsEachResult(t *testing.T) {
	e := New()
	src := `
load("1")
load("2")
map(function(r) return r .. "!" end)
`
	st, err := e.Run(context.Background(), src, []string{"a", "b"}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a!", "b!"}, st.Results)
}

func TestRun_MapNonStringReturnIsFatal(t *testing.T) {
	e := New()
	src := `
load("1")
map(function(r) return 42 end)
`
	_, err := e.Run(context.Background(), src, []string{"a"}, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrRuntime)
}

func TestRun_ApplyReplacesWholeList(t *testing.T) {
	e := New()
	src := `
apply(function(rs)
  local out = {}
  out[1] = "x"
  out[2] = "y"
  return out
end)
`
	st, err := e.Run(context.Background(), src, []string{"a", "b", "c"}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, st.Results)
}

func TestRun_MissingVariableIsFatal(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), `load("nope")`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrMissingVariable)
}

func TestRun_InvalidRegexIsFatal(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), `extract("(")`, []string{"x"}, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrRegex)
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), `this is not lua (`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrParse)
}

func TestRun_EnvReadsProcessEnvironmentDirectly(t *testing.T) {
	t.Setenv("SCRAPEYCAT_TEST_VAR", "direct-value")
	e := New()
	src := `
load("1")
append(env("SCRAPEYCAT_TEST_VAR"))
`
	st, err := e.Run(context.Background(), src, []string{""}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"direct-value"}, st.Results)
}

func TestRun_EnvMissingVariableIsFatal(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), `env("SCRAPEYCAT_DEFINITELY_UNSET")`, nil, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, scripterr.ErrMissingVariable)
}

func TestRun_VarReadOnlyHelper(t *testing.T) {
	e := New()
	src := `
load("1")
store("x")
clear()
load("x")
append(var("x"))
`
	st, err := e.Run(context.Background(), src, []string{"seed"}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"seedseed"}, st.Results)
}
