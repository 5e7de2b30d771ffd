// Package model defines the data structures shared by the crawler, the
// index and the report writers.
//
// This package contains the following main types:
//   - Page: an indexed document (canonical URL, title, truncated text)
//   - Failure and ErrorKind: a page-local fetch failure recorded during a crawl
//   - CrawlReport: the outcome of one crawl run
//
// Models live in their own package so that crawler, index, service and
// report can all share them without import cycles. Every type is JSON
// serializable.
package model
