package httpfetch

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"

	"github.com/mkforsb/scrapeycat/internal/logger"
)

// CollyFetcher uses Colly for GET-only text fetching. It implements
// Fetcher. A new collector is created per request so that concurrent
// scripts (daemon mode) never share mutable collector state.
type CollyFetcher struct {
	config Config
}

// NewColly creates a new Colly-backed fetcher.
func NewColly(cfg Config) *CollyFetcher {
	return &CollyFetcher{config: cfg.withDefaults()}
}

// Fetch follows redirects by default, decodes the body as UTF-8 with
// lossy replacement, and fails on network errors or non-2xx status.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string, headers []Header) (string, error) {
	logger.Debug("http fetch starting", "url", targetURL)

	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
	)
	c.SetRequestTimeout(f.config.Timeout)
	c.MaxBodySize = f.config.MaxBodySize
	// Let non-2xx responses reach OnResponse so the status check below
	// reports them as ErrHTTPStatus.
	c.ParseHTTPErrorResponse = true

	if len(headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for _, h := range headers {
				r.Headers.Add(h.Name, h.Value)
			}
		})
	}

	var (
		body       string
		statusCode int
		fetchErr   error
	)

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = toValidUTF8(r.Body)
		logger.Debug("http fetch response received", "url", targetURL, "status", statusCode, "body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
		logger.Debug("http fetch error", "url", targetURL, "status", statusCode, "error", err)
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(targetURL) }()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("http fetch %s: %w", targetURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("http fetch %s: %w", targetURL, err)
		}
	}

	if fetchErr != nil {
		return "", fmt.Errorf("http fetch %s: %w", targetURL, fetchErr)
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", fmt.Errorf("http fetch %s: status %d: %w", targetURL, statusCode, ErrHTTPStatus)
	}

	return body, nil
}

// toValidUTF8 replaces invalid byte sequences with the Unicode
// replacement character rather than rejecting the body outright — pages
// that mislabel their encoding are still worth scraping.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string([]rune(string(b)))
}
