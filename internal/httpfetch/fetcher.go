// Package httpfetch implements the engine's HTTP Fetcher contract: an
// async, text-only GET client that consumes the run's current header
// list and returns the response body as a string.
//
// Connection pooling, redirects, and TLS are handled by the underlying
// Colly collector and are transparent to callers.
package httpfetch

import (
	"context"
	"errors"
	"time"
)

// Header is a single request header, order-preserving and duplicate-tolerant
// to match state.State's header list.
type Header struct {
	Name  string
	Value string
}

// Fetcher performs text-only HTTP GET requests.
type Fetcher interface {
	// Fetch retrieves url with the given headers and returns the response
	// body decoded as UTF-8 (invalid sequences are replaced, not
	// rejected — scraped pages routinely mislabel their encoding).
	//
	// A non-2xx status or any network/protocol failure returns a non-nil
	// error satisfying errors.Is(err, ErrHTTPStatus) or wrapping the
	// underlying transport error.
	Fetch(ctx context.Context, url string, headers []Header) (string, error)
}

// ErrHTTPStatus is wrapped by Fetch errors caused by a non-2xx response.
var ErrHTTPStatus = errors.New("non-2xx HTTP status")

// Config controls fetcher behavior.
type Config struct {
	// UserAgent sent with every request.
	UserAgent string
	// Timeout bounds a single request (default 30s).
	Timeout time.Duration
	// MaxBodySize caps the response body in bytes (default 32 MiB).
	MaxBodySize int
}

const (
	defaultUserAgent   = "scrapeycat/1.0 (+https://github.com/mkforsb/scrapeycat)"
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 32 * 1024 * 1024
)

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     defaultTimeout,
		MaxBodySize: defaultMaxBodySize,
	}
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = defaultMaxBodySize
	}
	return c
}
