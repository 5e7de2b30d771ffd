package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/trugle/internal/config"
	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/metrics"
	"github.com/nao1215/trugle/internal/query"
	"github.com/nao1215/trugle/internal/server"
	"github.com/nao1215/trugle/internal/service"
	"github.com/nao1215/trugle/internal/truth"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve loads the saved index and answers searches over HTTP.

Endpoints:
  GET  /api/search?q=<query>[&limit=n]   search results and a truthScore
  POST /api/crawl {"seed", "maxPages"}   start a background crawl
  GET  /api/status                       index size and crawl state
  GET  /api/articles?status=<status>     tracked URLs (with --track)
  GET  /metrics                          Prometheus metrics

With --seed a crawl starts in the background as soon as the server is
up; searches see its pages while it runs. The index is saved after
every crawl.

Examples:
  # Serve the saved index on :3000
  trugle serve

  # Crawl 5 pages at startup and serve a front-end
  trugle serve --seed https://example.com/ --max-pages 5 --static ./public

  # Score queries with a truth analyzer
  trugle serve --analyzer http://localhost:5000/predict`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr, "Address to listen on")
	cmd.Flags().String("seed", "", "Seed URL crawled in the background at startup")
	cmd.Flags().String("static", "", "Directory with a static front-end served under /")
	cmd.Flags().String("analyzer", "", "Truth analyzer endpoint (default: random scores)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", cfg.Listen) //nolint:noctx
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", l.Addr())

	return serve(ctx, cfg, l, cmd.ErrOrStderr(), logger)
}

// serve wires the whole application onto l and blocks until ctx is done.
// l is closed on return.
func serve(ctx context.Context, cfg *config.Config, l net.Listener, out io.Writer, logger *slog.Logger) (err error) {
	st, err := openStorage(cfg, cfg.TrackerEnabled)
	if err != nil {
		_ = l.Close() //nolint:errcheck
		return err
	}

	closers := st.closers()
	client, torCloser, err := newHTTPClient(ctx, cfg, out, logger)
	if err != nil {
		_ = l.Close()              //nolint:errcheck
		_ = st.snapshotter.Close() //nolint:errcheck
		for _, c := range closers {
			_ = c.Close() //nolint:errcheck
		}
		return err
	}
	if torCloser != nil {
		closers = append(closers, torCloser)
	}

	store := loadStore(ctx, cfg, st.snapshotter, logger)

	m := metrics.New()
	m.SetIndexPages(store.Len())

	var tracker crawler.StatusTracker
	if cfg.TrackerEnabled {
		tracker = st.articles()
	}

	svc := service.New(newCrawler(cfg, store, client, m, tracker, logger), store,
		service.WithSnapshotter(st.snapshotter),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithSaveOnCancel(!cfg.NoSave),
	)
	defer func() {
		if cerr := svc.Close(closers...); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close storage: %w", cerr)
		}
	}()

	engine := query.NewEngine(store,
		query.WithLogger(logger),
		query.WithObserver(m),
	)

	opts := []server.Option{
		server.WithScorer(newScorer(cfg)),
		server.WithMetrics(m),
		server.WithLogger(logger),
		server.WithDefaultMaxPages(cfg.MaxPages),
	}
	if cfg.StaticDir != "" {
		opts = append(opts, server.WithStaticDir(cfg.StaticDir))
	}
	if articles := st.articles(); articles != nil {
		opts = append(opts, server.WithArticles(articles))
	}
	srv := server.New(engine, svc, opts...)

	if cfg.Seed != "" {
		runID, serr := svc.StartCrawl(cfg.Seed, cfg.MaxPages)
		if serr != nil {
			logger.Warn("failed to start startup crawl", "seed", cfg.Seed, "error", serr)
		} else {
			logger.Info("startup crawl started", "runId", runID, "seed", cfg.Seed, "maxPages", cfg.MaxPages)
		}
	}

	return srv.Serve(ctx, l)
}

func newScorer(cfg *config.Config) truth.Scorer {
	if cfg.AnalyzerURL == "" {
		return truth.NewRandomScorer()
	}
	return truth.NewAnalyzerScorer(cfg.AnalyzerURL)
}
