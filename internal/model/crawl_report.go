package model

import (
	"sort"
	"time"
)

// CrawlReport is the outcome of one crawl run.
type CrawlReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Seed is the canonical seed URL the run started from.
	Seed string `json:"seed"`

	// MaxPages is the page budget the run was started with.
	MaxPages int `json:"max_pages"`

	// PagesCrawled counts pages successfully fetched and indexed.
	PagesCrawled int `json:"pages_crawled"`

	// Visited lists every URL taken off the frontier, in dequeue order.
	// Failed URLs are included; they are visited but not counted.
	Visited []string `json:"visited"`

	// Failures holds one entry per URL that could not be fetched.
	Failures []Failure `json:"failures"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Cancelled is true when the run stopped because its context ended.
	// The report then holds partial results.
	Cancelled bool `json:"cancelled"`

	// StoreFull is true when the run stopped because the index store
	// reached its configured capacity.
	StoreFull bool `json:"store_full,omitempty"`

	// Warnings collects non-fatal problems such as a failed snapshot save.
	Warnings []string `json:"warnings,omitempty"`
}

// NewCrawlReport creates an empty report for a run.
func NewCrawlReport(runID, seed string, maxPages int) *CrawlReport {
	return &CrawlReport{
		RunID:    runID,
		Seed:     seed,
		MaxPages: maxPages,
		Visited:  make([]string, 0),
		Failures: make([]Failure, 0),
	}
}

// AddFailure records a fetch failure.
func (r *CrawlReport) AddFailure(f Failure) {
	r.Failures = append(r.Failures, f)
}

// AddWarning records a non-fatal problem.
func (r *CrawlReport) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Duration returns how long the run took.
// It is zero while the run has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailuresByKind counts failures per kind.
func (r *CrawlReport) FailuresByKind() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// FailureKinds returns the kinds present in the report in a stable order.
func (r *CrawlReport) FailureKinds() []ErrorKind {
	counts := r.FailuresByKind()
	kinds := make([]ErrorKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HasWarnings reports whether any warning was recorded.
func (r *CrawlReport) HasWarnings() bool {
	return len(r.Warnings) > 0
}
