package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trugle/internal/extractor"
	"github.com/nao1215/trugle/internal/fetcher"
	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/model"
)

// DefaultWorkers is the number of concurrent fetches when none is set.
// One worker reproduces a strictly sequential breadth-first crawl.
const DefaultWorkers = 1

// PageFetcher retrieves a document. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Document, error)
}

// PageExtractor turns a document into title, text and links.
// *extractor.Extractor satisfies it.
type PageExtractor interface {
	Extract(raw []byte, baseURL string) extractor.Result
}

// Observer receives crawl events. *metrics.Metrics satisfies it.
type Observer interface {
	CrawlStarted()
	FetchStarted()
	FetchFinished()
	PageCrawled()
	FetchFailed(kind model.ErrorKind)
}

// StatusTracker mirrors the life cycle of every discovered URL into an
// external document store. Tracker errors are logged and never stop a crawl.
type StatusTracker interface {
	// Discovered is called when a URL enters the frontier.
	Discovered(ctx context.Context, url string) error

	// Processed is called after a URL was fetched and indexed.
	Processed(ctx context.Context, url, content string, tokens []string) error

	// Failed is called when a URL could not be fetched.
	Failed(ctx context.Context, url string) error
}

// Crawler walks the web breadth-first from a seed and writes every fetched
// page into an index.Store.
//
// A single coordinator goroutine owns the frontier and the visited set, so
// the check-and-mark of a URL is atomic. Up to workers fetches run at once;
// each worker fetches, extracts and writes its page to the store, then hands
// the discovered links back to the coordinator.
type Crawler struct {
	fetcher     PageFetcher
	extractor   PageExtractor
	store       *index.Store
	workers     int
	sameHost    bool
	skipIndexed bool
	filter      pathFilter
	logger      *slog.Logger
	observer    Observer
	tracker     StatusTracker
	clock       clock.Clock
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers sets how many fetches may run concurrently.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithSameHost restricts the crawl to the seed's host.
func WithSameHost(enabled bool) Option {
	return func(c *Crawler) {
		c.sameHost = enabled
	}
}

// WithSkipIndexed treats URLs already present in the store as visited:
// they are neither fetched nor counted, and their links are not followed.
func WithSkipIndexed(enabled bool) Option {
	return func(c *Crawler) {
		c.skipIndexed = enabled
	}
}

// WithIgnorePatterns skips URLs whose path matches any glob pattern
// (e.g. "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.ignore = patterns
	}
}

// WithFollowPatterns only crawls URLs whose path matches one of the
// patterns. The seed is always fetched.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.follow = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a crawl event observer.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithTracker registers a URL status tracker.
func WithTracker(t StatusTracker) Option {
	return func(c *Crawler) {
		c.tracker = t
	}
}

// WithClock sets the clock used for report timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Crawler) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// New creates a Crawler writing into store.
func New(f PageFetcher, e PageExtractor, store *index.Store, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:   f,
		extractor: e,
		store:     store,
		workers:   DefaultWorkers,
		logger:    slog.Default(),
		observer:  noopObserver{},
		clock:     clock.WallClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl runs one crawl with a fresh run ID. See CrawlWithID.
func (c *Crawler) Crawl(ctx context.Context, seed string, maxPages int) *model.CrawlReport {
	return c.CrawlWithID(ctx, uuid.NewString(), seed, maxPages)
}

// CrawlWithID crawls from seed until maxPages pages were indexed, the
// frontier is empty, the store is full or ctx is done. It always returns a
// report; fetch failures are recorded in it and never abort the run.
func (c *Crawler) CrawlWithID(ctx context.Context, runID, seed string, maxPages int) *model.CrawlReport {
	report := model.NewCrawlReport(runID, seed, maxPages)
	report.StartedAt = c.clock.Now()
	c.observer.CrawlStarted()

	log := c.logger.With("run_id", runID)
	log.Info("crawl started", "seed", seed, "max_pages", maxPages, "workers", c.workers)

	canonical, err := Canonicalize(seed)
	if err != nil {
		report.AddFailure(model.Failure{URL: seed, Kind: model.ErrorKindOther, Message: err.Error()})
		c.observer.FetchFailed(model.ErrorKindOther)
		report.FinishedAt = c.clock.Now()
		log.Warn("invalid seed", "seed", seed, "error", err)
		return report
	}
	report.Seed = canonical

	seedURL, _ := url.Parse(canonical) //nolint:errcheck // canonical URLs always parse
	fr := newFrontier()
	fr.offer(canonical)
	c.track(ctx, log, func(t StatusTracker) error { return t.Discovered(ctx, canonical) })

	c.run(ctx, log, report, fr, seedURL, maxPages)

	report.FinishedAt = c.clock.Now()
	log.Info("crawl finished",
		"pages", report.PagesCrawled,
		"failures", len(report.Failures),
		"cancelled", report.Cancelled,
		"elapsed", report.Duration(),
	)
	return report
}

// pageResult is what a worker hands back to the coordinator.
type pageResult struct {
	url     string
	links   []string
	content string
	err     error
}

func (c *Crawler) run(ctx context.Context, log *slog.Logger, report *model.CrawlReport, fr *frontier, seed *url.URL, maxPages int) {
	var g errgroup.Group
	g.SetLimit(c.workers)

	results := make(chan pageResult)
	done := ctx.Done()
	inFlight := 0
	stopping := false

	for {
		if ctx.Err() != nil && !stopping {
			stopping = true
			report.Cancelled = true
		}

		// Admit new fetches only while the budget can still be met by the
		// fetches already running.
		for !stopping && inFlight < c.workers && report.PagesCrawled+inFlight < maxPages {
			u, ok := fr.next()
			if !ok {
				break
			}
			if c.skipIndexed && c.store.Has(u) {
				log.Debug("skipping indexed URL", "url", u)
				continue
			}
			report.Visited = append(report.Visited, u)
			inFlight++
			c.observer.FetchStarted()
			g.Go(func() error {
				results <- c.process(ctx, u)
				return nil
			})
		}

		if inFlight == 0 {
			break
		}

		select {
		case <-done:
			done = nil
			stopping = true
			report.Cancelled = true
			log.Info("crawl cancelled, waiting for in-flight fetches", "in_flight", inFlight)
		case res := <-results:
			inFlight--
			c.observer.FetchFinished()
			if c.handle(ctx, log, report, fr, seed, res) {
				stopping = true
			}
		}
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors
}

// process runs inside a worker: fetch, extract, store.
func (c *Crawler) process(ctx context.Context, u string) pageResult {
	doc, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return pageResult{url: u, err: err}
	}
	res := c.extractor.Extract(doc.Body, u)
	if err := c.store.Put(u, res.Title, res.Content); err != nil {
		return pageResult{url: u, err: err}
	}
	return pageResult{url: u, links: res.Links, content: res.Content}
}

// handle applies a worker result on the coordinator. It reports whether
// the crawl must stop admitting new fetches.
func (c *Crawler) handle(ctx context.Context, log *slog.Logger, report *model.CrawlReport, fr *frontier, seed *url.URL, res pageResult) bool {
	if res.err != nil {
		if errors.Is(res.err, index.ErrStoreFull) {
			report.StoreFull = true
			log.Warn("index store is full, stopping crawl", "url", res.url, "capacity", c.store.Capacity())
			return true
		}
		if ctx.Err() != nil && errors.Is(res.err, context.Canceled) {
			log.Debug("fetch cancelled", "url", res.url)
			return false
		}

		failure := model.Failure{URL: res.url, Kind: model.ErrorKindOther, Message: res.err.Error()}
		var fe *fetcher.FetchError
		if errors.As(res.err, &fe) {
			failure = fe.Failure()
		}
		report.AddFailure(failure)
		c.observer.FetchFailed(failure.Kind)
		c.track(ctx, log, func(t StatusTracker) error { return t.Failed(ctx, res.url) })
		log.Debug("fetch failed", "url", res.url, "kind", failure.Kind, "error", res.err)
		return false
	}

	report.PagesCrawled++
	c.observer.PageCrawled()
	c.track(ctx, log, func(t StatusTracker) error {
		return t.Processed(ctx, res.url, res.content, index.Tokenize(res.content))
	})

	added := 0
	for _, link := range res.links {
		if u, ok := c.admissible(link, seed); ok && fr.offer(u) {
			added++
			c.track(ctx, log, func(t StatusTracker) error { return t.Discovered(ctx, u) })
		}
	}
	log.Debug("page indexed", "url", res.url, "links", len(res.links), "queued", added, "frontier", fr.len())
	return false
}

// admissible canonicalizes link and applies the scheme, host and path
// filters.
func (c *Crawler) admissible(link string, seed *url.URL) (string, bool) {
	canonical, err := Canonicalize(link)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", false
	}
	if c.sameHost && !strings.EqualFold(u.Host, seed.Host) {
		return "", false
	}
	if !c.filter.allows(u) {
		return "", false
	}
	return canonical, true
}

func (c *Crawler) track(ctx context.Context, log *slog.Logger, fn func(StatusTracker) error) {
	if c.tracker == nil {
		return
	}
	if err := fn(c.tracker); err != nil && ctx.Err() == nil {
		log.Warn("status tracker update failed", "error", err)
	}
}

type noopObserver struct{}

func (noopObserver) CrawlStarted()               {}
func (noopObserver) FetchStarted()               {}
func (noopObserver) FetchFinished()              {}
func (noopObserver) PageCrawled()                {}
func (noopObserver) FetchFailed(model.ErrorKind) {}
