// Package crawler implements the crawl frontier: breadth-first traversal
// from a seed URL with a page budget.
//
// # Architecture
//
// Crawler coordinates the run. It owns a FIFO queue of discovered URLs and
// the run's visited set, dispatches fetches to a bounded errgroup of
// workers, and records the outcome in a model.CrawlReport.
//
//   - A URL is canonicalized (see Canonicalize) before it is queued, so
//     "HTTP://Example.com" and "http://example.com/#top" are one URL.
//   - A URL is marked visited when it is dequeued. Failed URLs are visited
//     but not counted as crawled, and are never retried in the same run.
//   - Only http and https links enter the queue. Optional host and path
//     filters narrow the crawl further.
//   - A fetch is started only while pages crawled plus fetches in flight is
//     below the budget, so a run never indexes more than maxPages pages.
//
// # Cancellation
//
// When the context ends the crawler stops admitting fetches, waits for the
// running ones and returns the partial report with Cancelled set.
//
// # Usage
//
//	store := index.NewStore()
//	c := crawler.New(fetcher.New(), extractor.New(), store, crawler.WithWorkers(4))
//	report := c.Crawl(ctx, "https://example.com", 50)
package crawler
