package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"

	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/metrics"
	"github.com/nao1215/trugle/internal/model"
	"github.com/nao1215/trugle/internal/persist"
)

var (
	// ErrCrawlInProgress is returned when a crawl is requested while another
	// one is still running.
	ErrCrawlInProgress = errors.New("a crawl is already in progress")

	// ErrInvalidMaxPages is returned for a negative page budget.
	ErrInvalidMaxPages = errors.New("max pages must not be negative")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("service is closed")
)

// Crawler is the crawl operation the service drives.
type Crawler interface {
	CrawlWithID(ctx context.Context, runID, seed string, maxPages int) *model.CrawlReport
}

var _ Crawler = (*crawler.Crawler)(nil)

// Status is a point-in-time view of the service.
type Status struct {
	Pages       int                `json:"pages"`
	Tokens      int                `json:"tokens"`
	Running     bool               `json:"running"`
	RunID       string             `json:"runId,omitempty"`
	LastSavedAt *time.Time         `json:"lastSavedAt,omitempty"`
	LastReport  *model.CrawlReport `json:"lastReport,omitempty"`
}

// Service owns the crawl life cycle for one index store.
type Service struct {
	crawler      Crawler
	store        *index.Store
	snapshotter  persist.Snapshotter
	metrics      *metrics.Metrics
	clock        clock.Clock
	logger       *slog.Logger
	saveOnCancel bool

	mu          sync.Mutex
	running     bool
	closed      bool
	runID       string
	lastReport  *model.CrawlReport
	lastSavedAt time.Time

	// bgCtx parents background crawls; Close cancels it.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotter sets where the store is saved after each crawl.
// Without one, nothing is saved.
func WithSnapshotter(s persist.Snapshotter) Option {
	return func(svc *Service) {
		svc.snapshotter = s
	}
}

// WithMetrics sets the metrics updated with the index size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// WithClock sets the clock used for save timestamps.
func WithClock(clk clock.Clock) Option {
	return func(svc *Service) {
		if clk != nil {
			svc.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithSaveOnCancel controls whether a cancelled crawl is still saved.
// The default is true.
func WithSaveOnCancel(enabled bool) Option {
	return func(svc *Service) {
		svc.saveOnCancel = enabled
	}
}

// New creates a Service. c must write into store.
func New(c Crawler, store *index.Store, opts ...Option) *Service {
	svc := &Service{
		crawler:      c,
		store:        store,
		clock:        clock.WallClock,
		logger:       slog.Default(),
		saveOnCancel: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.bgCtx, svc.bgCancel = context.WithCancel(context.Background())
	svc.metrics.SetIndexPages(store.Len())
	return svc
}

// Store returns the index store the service crawls into.
func (s *Service) Store() *index.Store {
	return s.store
}

// Crawl runs one crawl and saves the store afterwards. The returned error is
// ErrCrawlInProgress, ErrClosed or ErrInvalidMaxPages; everything that goes
// wrong during the run is on the report.
func (s *Service) Crawl(ctx context.Context, seed string, maxPages int) (*model.CrawlReport, error) {
	runID, err := s.acquire(maxPages)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, runID, seed, maxPages), nil
}

// StartCrawl starts a crawl in the background and returns its run ID. The
// crawl outlives ctx; it stops when the service is closed.
func (s *Service) StartCrawl(seed string, maxPages int) (string, error) {
	runID, err := s.acquire(maxPages)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.bgCtx, runID, seed, maxPages)
	}()
	return runID, nil
}

func (s *Service) acquire(maxPages int) (string, error) {
	if maxPages < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidMaxPages, maxPages)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.running {
		return "", fmt.Errorf("%w: run %s", ErrCrawlInProgress, s.runID)
	}
	s.running = true
	s.runID = uuid.NewString()
	return s.runID, nil
}

func (s *Service) run(ctx context.Context, runID, seed string, maxPages int) *model.CrawlReport {
	report := s.crawler.CrawlWithID(ctx, runID, seed, maxPages)
	s.metrics.SetIndexPages(s.store.Len())

	if report.Cancelled && !s.saveOnCancel {
		s.logger.Warn("crawl cancelled, snapshot not saved", "run_id", runID)
	} else if err := s.Save(ctx); err != nil {
		report.AddWarning(err.Error())
	}

	s.mu.Lock()
	s.running = false
	s.runID = ""
	s.lastReport = report
	s.mu.Unlock()
	return report
}

// Save writes the store through the snapshotter. It still saves when ctx is
// already cancelled, so the state of an interrupted crawl is kept.
func (s *Service) Save(ctx context.Context) error {
	if s.snapshotter == nil {
		return nil
	}

	start := s.clock.Now()
	if err := s.snapshotter.Save(context.WithoutCancel(ctx), s.store); err != nil {
		s.logger.Warn("failed to save snapshot", "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	now := s.clock.Now()

	s.mu.Lock()
	s.lastSavedAt = now
	s.mu.Unlock()

	s.logger.Info("snapshot saved", "pages", s.store.Len(), "elapsed", now.Sub(start))
	return nil
}

// Status reports the current state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Pages:      s.store.Len(),
		Tokens:     s.store.TokenCount(),
		Running:    s.running,
		RunID:      s.runID,
		LastReport: s.lastReport,
	}
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		st.LastSavedAt = &t
	}
	return st
}

// LastReport returns the report of the most recent finished crawl, or nil.
func (s *Service) LastReport() *model.CrawlReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Wait blocks until background crawls are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels background crawls, waits for them to save, and closes the
// snapshotter together with any extra closers, such as the article store's
// database. All close errors are returned together.
func (s *Service) Close(extra ...io.Closer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.bgCancel()
	s.wg.Wait()

	var result *multierror.Error
	if s.snapshotter != nil {
		if err := s.snapshotter.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close snapshotter: %w", err))
		}
	}
	for _, c := range extra {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
