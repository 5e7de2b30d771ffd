// Package server exposes the search engine over HTTP.
//
// Routes:
//
//	GET  /api/search?q=<query>[&limit=n]  search results with a truthScore
//	POST /api/crawl                       start a background crawl
//	GET  /api/status                      index size and crawl state
//	GET  /api/articles?status=<status>    tracked articles (when configured)
//	GET  /metrics                         Prometheus exposition
//	/                                     static front-end (when configured)
package server
