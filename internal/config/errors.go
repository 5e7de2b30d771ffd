package config

import "errors"

// Configuration validation errors. Validate reports every one that applies,
// combined into a single error; errors.Is finds each of them.
var (
	// ErrNoSeed is returned when a crawl is requested without a seed URL.
	ErrNoSeed = errors.New("no seed specified: provide a seed URL")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the fetcher default.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidIndexCapacity is returned when the index capacity is negative.
	// Use 0 for an unbounded index.
	ErrInvalidIndexCapacity = errors.New("invalid index capacity: must be non-negative")

	// ErrUnknownStorageBackend is returned for a backend other than json or sqlite.
	ErrUnknownStorageBackend = errors.New("unknown storage backend: use json or sqlite")

	// ErrEmptyListenAddr is returned when the server listen address is empty.
	ErrEmptyListenAddr = errors.New("empty listen address")

	// ErrInvalidAnalyzerURL is returned when the truth analyzer URL is not
	// an absolute http or https URL.
	ErrInvalidAnalyzerURL = errors.New("invalid analyzer URL: must be an absolute http(s) URL")

	// ErrConflictingProxies is returned when both an external SOCKS5 proxy
	// and the embedded Tor daemon are configured.
	ErrConflictingProxies = errors.New("conflicting proxies: socks5 proxy and embedded tor cannot be used together")

	// ErrInvalidTorStartupTimeout is returned when the embedded Tor startup
	// timeout is not positive.
	ErrInvalidTorStartupTimeout = errors.New("invalid tor startup timeout: must be positive")

	// ErrUnknownReportFormat is returned for a report format other than
	// text, json or markdown.
	ErrUnknownReportFormat = errors.New("unknown report format: use text, json or markdown")

	// ErrInvalidEnv is returned when a TRUGLE_* variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
