package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/extractor"
	"github.com/nao1215/trugle/internal/fetcher"
	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/metrics"
	"github.com/nao1215/trugle/internal/model"
	"github.com/nao1215/trugle/internal/persist"
)

// fakeCrawler puts one page per call and can block until released.
type fakeCrawler struct {
	store   *index.Store
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (f *fakeCrawler) CrawlWithID(ctx context.Context, runID, seed string, maxPages int) *model.CrawlReport {
	f.mu.Lock()
	f.calls = append(f.calls, runID)
	f.mu.Unlock()

	report := model.NewCrawlReport(runID, seed, maxPages)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			report.Cancelled = true
			return report
		}
	}
	_ = f.store.Put(seed, "Seed", "seed page content")
	report.PagesCrawled = 1
	report.Visited = []string{seed}
	return report
}

// fakeSnapshotter records saves and can fail them.
type fakeSnapshotter struct {
	mu       sync.Mutex
	saves    int
	saveErr  error
	closeErr error
	closed   bool
}

func (f *fakeSnapshotter) Save(ctx context.Context, _ *index.Store) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return errors.New("save received a cancelled context")
	}
	f.saves++
	return f.saveErr
}

func (f *fakeSnapshotter) Load(_ context.Context, opts ...index.StoreOption) (*index.Store, error) {
	return index.NewStore(opts...), nil
}

func (f *fakeSnapshotter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeSnapshotter) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// gaugeValue reads a single-series gauge from reg.
func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) == 1 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s not found", name)
	return 0
}

func TestService_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("crawl then save", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		snap := &fakeSnapshotter{}
		m := metrics.New()
		clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		svc := New(&fakeCrawler{store: store}, store, WithSnapshotter(snap), WithMetrics(m), WithClock(clk))

		report, err := svc.Crawl(context.Background(), "http://a.test/", 5)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.PagesCrawled != 1 || report.HasWarnings() {
			t.Errorf("unexpected report %+v", report)
		}
		if snap.saveCount() != 1 {
			t.Errorf("saves = %d, want 1", snap.saveCount())
		}
		if got := gaugeValue(t, m.Registry(), "trugle_index_pages"); got != 1 {
			t.Errorf("index pages gauge = %v, want 1", got)
		}

		st := svc.Status()
		if st.Running || st.Pages != 1 || st.LastReport != report {
			t.Errorf("unexpected status %+v", st)
		}
		if st.LastSavedAt == nil || !st.LastSavedAt.Equal(clk.Now()) {
			t.Errorf("LastSavedAt = %v, want %v", st.LastSavedAt, clk.Now())
		}
	})

	t.Run("save failure becomes a warning", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		snap := &fakeSnapshotter{saveErr: persist.Wrap("write", errors.New("disk full"))}
		svc := New(&fakeCrawler{store: store}, store, WithSnapshotter(snap))

		report, err := svc.Crawl(context.Background(), "http://a.test/", 5)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if len(report.Warnings) != 1 {
			t.Fatalf("Warnings = %v, want one", report.Warnings)
		}
		if store.Len() != 1 {
			t.Error("store must keep the crawled page when save fails")
		}
	})

	t.Run("cancelled crawl is still saved", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		snap := &fakeSnapshotter{}
		svc := New(&fakeCrawler{store: store, release: make(chan struct{})}, store, WithSnapshotter(snap))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := svc.Crawl(ctx, "http://a.test/", 5)
		if err != nil {
			t.Fatal(err)
		}
		if !report.Cancelled {
			t.Error("report should be cancelled")
		}
		if snap.saveCount() != 1 {
			t.Errorf("saves = %d, want 1", snap.saveCount())
		}
	})

	t.Run("cancelled crawl is not saved when disabled", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		snap := &fakeSnapshotter{}
		svc := New(&fakeCrawler{store: store, release: make(chan struct{})}, store,
			WithSnapshotter(snap), WithSaveOnCancel(false))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := svc.Crawl(ctx, "http://a.test/", 5); err != nil {
			t.Fatal(err)
		}
		if snap.saveCount() != 0 {
			t.Errorf("saves = %d, want 0", snap.saveCount())
		}
	})

	t.Run("negative budget", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		svc := New(&fakeCrawler{store: store}, store)
		if _, err := svc.Crawl(context.Background(), "http://a.test/", -1); !errors.Is(err, ErrInvalidMaxPages) {
			t.Errorf("Crawl() error = %v, want ErrInvalidMaxPages", err)
		}
	})

	t.Run("no snapshotter", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		svc := New(&fakeCrawler{store: store}, store)
		report, err := svc.Crawl(context.Background(), "http://a.test/", 1)
		if err != nil || report.HasWarnings() {
			t.Errorf("Crawl() = %+v, %v", report, err)
		}
		if svc.Status().LastSavedAt != nil {
			t.Error("LastSavedAt should stay unset without a snapshotter")
		}
	})
}

func TestService_StartCrawl(t *testing.T) {
	t.Parallel()

	store := index.NewStore()
	fc := &fakeCrawler{store: store, started: make(chan struct{}, 1), release: make(chan struct{})}
	snap := &fakeSnapshotter{}
	svc := New(fc, store, WithSnapshotter(snap))

	runID, err := svc.StartCrawl("http://a.test/", 3)
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	if runID == "" {
		t.Fatal("empty run ID")
	}
	<-fc.started

	st := svc.Status()
	if !st.Running || st.RunID != runID {
		t.Errorf("status = %+v, want running %s", st, runID)
	}

	if _, err := svc.StartCrawl("http://b.test/", 3); !errors.Is(err, ErrCrawlInProgress) {
		t.Errorf("second StartCrawl() error = %v, want ErrCrawlInProgress", err)
	}
	if _, err := svc.Crawl(context.Background(), "http://b.test/", 3); !errors.Is(err, ErrCrawlInProgress) {
		t.Errorf("Crawl() during background run error = %v, want ErrCrawlInProgress", err)
	}

	close(fc.release)
	svc.Wait()

	last := svc.LastReport()
	if last == nil || last.RunID != runID {
		t.Fatalf("LastReport() = %+v, want run %s", last, runID)
	}
	if svc.Status().Running {
		t.Error("service should be idle")
	}
	if snap.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", snap.saveCount())
	}

	if _, err := svc.StartCrawl("http://a.test/", 1); err != nil {
		t.Errorf("StartCrawl() after finish error = %v", err)
	}
	svc.Wait()
}

func TestService_Close(t *testing.T) {
	t.Parallel()

	t.Run("cancels background crawl and closes everything", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		fc := &fakeCrawler{store: store, started: make(chan struct{}, 1), release: make(chan struct{})}
		snap := &fakeSnapshotter{}
		svc := New(fc, store, WithSnapshotter(snap))

		if _, err := svc.StartCrawl("http://a.test/", 3); err != nil {
			t.Fatal(err)
		}
		<-fc.started

		if err := svc.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !snap.closed {
			t.Error("snapshotter should be closed")
		}
		last := svc.LastReport()
		if last == nil || !last.Cancelled {
			t.Errorf("LastReport() = %+v, want a cancelled report", last)
		}
		if snap.saveCount() != 1 {
			t.Errorf("cancelled background crawl saves = %d, want 1", snap.saveCount())
		}
		if _, err := svc.StartCrawl("http://a.test/", 1); !errors.Is(err, ErrClosed) {
			t.Errorf("StartCrawl() after Close error = %v, want ErrClosed", err)
		}
		if err := svc.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("close errors are combined", func(t *testing.T) {
		t.Parallel()

		store := index.NewStore()
		errA := errors.New("snapshot close failed")
		errB := errors.New("extra close failed")
		svc := New(&fakeCrawler{store: store}, store, WithSnapshotter(&fakeSnapshotter{closeErr: errA}))

		err := svc.Close(&fakeSnapshotter{closeErr: errB}, nil)
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("Close() error = %v, want both errors", err)
		}
	})
}

func TestService_WithRealCrawler(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>truth lives here <a href="/next">next</a></body></html>`))
		default:
			_, _ = w.Write([]byte(`<html><head><title>Next</title></head><body>another truth</body></html>`))
		}
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "index.json")
	store := index.NewStore()
	c := crawler.New(fetcher.New(fetcher.WithTimeout(2*time.Second)), extractor.New(), store)
	svc := New(c, store, WithSnapshotter(persist.NewJSONFile(path)))

	report, err := svc.Crawl(context.Background(), server.URL, 10)
	if err != nil {
		t.Fatal(err)
	}
	if report.PagesCrawled != 2 {
		t.Errorf("PagesCrawled = %d, want 2", report.PagesCrawled)
	}

	loaded, err := persist.NewJSONFile(path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 2 || len(loaded.TokenURLs("truth")) != 2 {
		t.Errorf("loaded %d pages, %d truth postings", loaded.Len(), len(loaded.TokenURLs("truth")))
	}
}
