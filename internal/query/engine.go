// Package query answers keyword queries against an index.Store.
//
// Queries are tokenized with index.Tokenize and resolved with OR semantics.
// Results are ordered by union insertion: query tokens in the order they
// appear in the query, and for each token its URLs in the order they were
// first indexed. A URL matched by several tokens appears once, at its first
// position.
package query

import (
	"log/slog"
	"time"

	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/model"
)

const (
	// SnippetLength is the number of content runes in a snippet.
	SnippetLength = 200

	// Ellipsis is appended to every snippet.
	Ellipsis = "..."
)

// Result is one search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"content"`
}

// Observer is notified after every search. metrics.Metrics satisfies it.
type Observer interface {
	ObserveSearch(d time.Duration, results int)
}

// Engine runs searches against a store.
type Engine struct {
	store    *index.Store
	limit    int
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimit caps the number of results. 0 returns every match.
func WithLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a search observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an Engine reading from store.
func NewEngine(store *index.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the pages matching any qualifying token of q.
// A query without qualifying tokens returns an empty, non-nil slice.
func (e *Engine) Search(q string) []Result {
	return e.search(q, e.limit)
}

// SearchN is Search with a per-call limit overriding the engine default.
// limit <= 0 falls back to the engine default.
func (e *Engine) SearchN(q string, limit int) []Result {
	if limit <= 0 {
		limit = e.limit
	}
	return e.search(q, limit)
}

func (e *Engine) search(q string, limit int) []Result {
	start := time.Now()
	tokens := index.Tokenize(q)
	results := make([]Result, 0)
	if len(tokens) > 0 {
		for _, p := range e.store.Lookup(tokens) {
			results = append(results, newResult(p))
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveSearch(elapsed, len(results))
	}
	e.logger.Debug("search", "query", q, "tokens", len(tokens), "results", len(results), "elapsed", elapsed)
	return results
}

func newResult(p model.Page) Result {
	return Result{
		URL:     p.URL,
		Title:   p.Title,
		Snippet: Snippet(p.Content),
	}
}

// Snippet returns the first SnippetLength runes of content followed by
// Ellipsis. The ellipsis is added even when content is shorter.
func Snippet(content string) string {
	return model.TruncateRunes(content, SnippetLength) + Ellipsis
}
