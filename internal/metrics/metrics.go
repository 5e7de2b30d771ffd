// Package metrics exposes Prometheus collectors for crawls and searches.
//
// Collectors are registered on a private registry rather than the global
// default one, so several Metrics values (for example one per test) can
// coexist in a process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/trugle/internal/model"
)

const namespace = "trugle"

// Metrics holds every collector. All methods are safe on a nil receiver,
// which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	crawlRuns      prometheus.Counter
	pagesCrawled   prometheus.Counter
	fetchFailures  *prometheus.CounterVec
	inFlight       prometheus.Gauge
	indexPages     prometheus.Gauge
	searches       prometheus.Counter
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		crawlRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "runs_total",
			Help:      "Number of crawl runs started.",
		}),
		pagesCrawled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "pages_total",
			Help:      "Number of pages fetched and indexed.",
		}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "failures_total",
			Help:      "Number of failed fetches by error kind.",
		}, []string{"kind"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "in_flight",
			Help:      "Number of fetches currently running.",
		}),
		indexPages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "pages",
			Help:      "Number of pages in the index store.",
		}),
		searches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Number of searches served.",
		}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Time spent resolving a search.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		searchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of results per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// CrawlStarted counts a new crawl run.
func (m *Metrics) CrawlStarted() {
	if m == nil {
		return
	}
	m.crawlRuns.Inc()
}

// FetchStarted marks a fetch as in flight.
func (m *Metrics) FetchStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// FetchFinished marks a fetch as done.
func (m *Metrics) FetchFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// PageCrawled counts an indexed page.
func (m *Metrics) PageCrawled() {
	if m == nil {
		return
	}
	m.pagesCrawled.Inc()
}

// FetchFailed counts a failure of the given kind.
func (m *Metrics) FetchFailed(kind model.ErrorKind) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(kind.String()).Inc()
}

// SetIndexPages records the current store size.
func (m *Metrics) SetIndexPages(n int) {
	if m == nil {
		return
	}
	m.indexPages.Set(float64(n))
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.searchDuration.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
