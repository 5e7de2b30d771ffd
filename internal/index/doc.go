// Package index holds the page store and the inverted index built from it.
//
// A Store maps canonical URLs to pages and tokens to the ordered set of URLs
// whose content contains them. The same Tokenize function is used for
// indexing and for queries, so a query token matches exactly the tokens
// produced from page content.
//
// # Concurrency
//
// A Store is safe for concurrent use. Writers (the crawler workers) take an
// exclusive lock for the whole of Put, so readers (the query engine) only
// ever observe a page together with all of its index entries.
//
// # Snapshots
//
// Snapshot and FromSnapshot convert a Store to and from the plain document
// shape used by the persistence backends:
//
//	{"pages": {url: {"title", "content"}}, "keywords": {token: [url, ...]}}
//
// Keyword URL lists keep their insertion order, which makes query results
// stable across a save and load.
package index
