// Package service runs crawls against the shared index store and saves a
// snapshot after each one.
//
// A Service allows one crawl at a time. Crawl blocks until the run is over;
// StartCrawl runs it in the background and returns the run ID at once.
// After every run, finished or cancelled, the store is written through the
// configured persist.Snapshotter. A failed save never fails the crawl: it
// becomes a warning on the report.
package service
