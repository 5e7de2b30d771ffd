// Package fetcher retrieves raw documents over HTTP.
//
// Fetch makes exactly one attempt per URL with a fixed timeout. Every failure
// is returned as a *FetchError whose Kind tells the crawler how to record it:
// timeout, connection failure, non-2xx status or anything else.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/trugle/internal/model"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "trugle/1.0 (+https://github.com/nao1215/trugle)"
)

// Document is a successfully fetched response.
type Document struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the 2xx status of the response.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body holds at most the configured maximum body size.
	Body []byte
}

// Fetcher issues GET requests.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client, for example with one routed
// through a SOCKS5 proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize caps the number of body bytes read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{},
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. The returned error, when non-nil, is always a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: model.ErrorKindOther, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &FetchError{
			URL:  rawURL,
			Kind: model.ErrorKindOther,
			Err:  fmt.Errorf("unsupported scheme %q", u.Scheme),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: model.ErrorKindOther, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		kind := classify(err)
		if errors.Is(err, context.Canceled) {
			kind = model.ErrorKindOther
		}
		return nil, &FetchError{URL: rawURL, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, &FetchError{
			URL:        rawURL,
			Kind:       model.ErrorKindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrStatus, resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: fmt.Errorf("failed to read body: %w", err)}
	}

	f.logger.Debug("fetched page",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	return &Document{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
