package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nao1215/trugle/internal/database"
	"github.com/nao1215/trugle/internal/metrics"
	"github.com/nao1215/trugle/internal/query"
	"github.com/nao1215/trugle/internal/service"
	"github.com/nao1215/trugle/internal/truth"
)

const (
	// DefaultListenAddr is the address Run listens on when none is given.
	DefaultListenAddr = ":3000"

	// DefaultMaxPages is the page budget for a crawl request without one.
	DefaultMaxPages = 5

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// Searcher answers search queries.
type Searcher interface {
	SearchN(q string, limit int) []query.Result
}

// Crawls starts background crawls and reports their state.
type Crawls interface {
	StartCrawl(seed string, maxPages int) (string, error)
	Status() service.Status
}

// ArticleLister lists tracked articles.
type ArticleLister interface {
	ListByStatus(ctx context.Context, status database.Status) ([]*database.Article, error)
}

var (
	_ Searcher      = (*query.Engine)(nil)
	_ Crawls        = (*service.Service)(nil)
	_ ArticleLister = (*database.ArticleStore)(nil)
)

// Server is the HTTP front of the search engine.
type Server struct {
	router *mux.Router

	searcher        Searcher
	crawls          Crawls
	scorer          truth.Scorer
	articles        ArticleLister
	metrics         *metrics.Metrics
	logger          *slog.Logger
	staticDir       string
	defaultMaxPages int
}

// Option configures a Server.
type Option func(*Server)

// WithScorer sets the truthScore producer. The default is truth.RandomScorer.
func WithScorer(s truth.Scorer) Option {
	return func(srv *Server) {
		if s != nil {
			srv.scorer = s
		}
	}
}

// WithArticles enables GET /api/articles.
func WithArticles(a ArticleLister) Option {
	return func(srv *Server) {
		srv.articles = a
	}
}

// WithMetrics enables GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) {
		srv.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.logger = l
		}
	}
}

// WithStaticDir serves the files in dir under /.
func WithStaticDir(dir string) Option {
	return func(srv *Server) {
		srv.staticDir = dir
	}
}

// WithDefaultMaxPages sets the budget used when a crawl request has none.
func WithDefaultMaxPages(n int) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.defaultMaxPages = n
		}
	}
}

// New creates a Server. crawls may be nil, in which case crawl requests
// are refused and the status omits the crawl state.
func New(searcher Searcher, crawls Crawls, opts ...Option) *Server {
	srv := &Server{
		router:          mux.NewRouter(),
		searcher:        searcher,
		crawls:          crawls,
		scorer:          truth.NewRandomScorer(),
		logger:          slog.Default(),
		defaultMaxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

func (srv *Server) routes() {
	r := srv.router
	r.Use(srv.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", srv.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/crawl", srv.handleCrawl).Methods(http.MethodPost)
	api.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/articles", srv.handleArticles).Methods(http.MethodGet)
	api.NotFoundHandler = http.HandlerFunc(handleNotFound)

	if srv.metrics != nil {
		r.Handle("/metrics", srv.metrics.Handler()).Methods(http.MethodGet)
	}
	if srv.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(srv.staticDir))).Methods(http.MethodGet, http.MethodHead)
	}
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
}

// Handler returns the root HTTP handler.
func (srv *Server) Handler() http.Handler {
	return srv.router
}

// Run listens on addr and serves until ctx is done, then shuts down
// gracefully.
func (srv *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListenAddr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, l)
}

// Serve serves on l until ctx is done. l is closed on return.
func (srv *Server) Serve(ctx context.Context, l net.Listener) error {
	hs := &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Serve(l)
	}()

	srv.logger.Info("server listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	srv.logger.Info("server stopped")
	return nil
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (srv *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		srv.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}
