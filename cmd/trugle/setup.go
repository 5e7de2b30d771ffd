package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/trugle/internal/config"
	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/database"
	"github.com/nao1215/trugle/internal/extractor"
	"github.com/nao1215/trugle/internal/fetcher"
	"github.com/nao1215/trugle/internal/index"
	trlog "github.com/nao1215/trugle/internal/log"
	"github.com/nao1215/trugle/internal/metrics"
	"github.com/nao1215/trugle/internal/persist"
	"github.com/nao1215/trugle/internal/tor"
)

// addCrawlFlags registers the flags shared by crawl and serve. Defaults are
// only shown in the help; a flag overrides the configuration only when it
// is set on the command line.
func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages to crawl")
	f.IntP("workers", "w", config.DefaultWorkers, "Number of concurrent fetches")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.Bool("same-host", false, "Only follow links on the seed's host")
	f.Bool("skip-indexed", false, "Skip URLs that are already indexed")
	f.StringSlice("ignore", nil, "URL path patterns to skip (repeatable)")
	f.StringSlice("follow", nil, "Only crawl URL paths matching these patterns (repeatable)")
	f.Int("index-max-pages", 0, "Maximum number of pages in the index (0 = unlimited)")
	f.Bool("track", false, "Record the status of every discovered URL in the articles table")
	f.Bool("no-save", false, "Do not save the index after a cancelled crawl")
	f.String("socks5", "", "Route fetches through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	f.Bool("embedded-tor", false, "Start an embedded Tor daemon and route fetches through it")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")
	addStorageFlags(cmd)
}

// addStorageFlags registers the flags that locate the saved index.
func addStorageFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", config.BackendJSON, "Storage backend: json or sqlite")
	f.String("data-dir", "", "Data directory (default: XDG data directory)")
}

// loadConfig builds the configuration for cmd: defaults, config file, .env
// and environment, then the flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	var configPath string
	if cmd.Flags().Lookup("config") != nil {
		p, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// flagReader copies changed flags into the configuration and keeps the
// first lookup error.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) changed(name string) bool {
	return r.err == nil && r.cmd.Flags().Lookup(name) != nil && r.cmd.Flags().Changed(name)
}

func (r *flagReader) str(name string, dst *string) {
	if r.changed(name) {
		*dst, r.err = r.cmd.Flags().GetString(name)
	}
}

func (r *flagReader) integer(name string, dst *int) {
	if r.changed(name) {
		*dst, r.err = r.cmd.Flags().GetInt(name)
	}
}

func (r *flagReader) boolean(name string, dst *bool) {
	if r.changed(name) {
		*dst, r.err = r.cmd.Flags().GetBool(name)
	}
}

func (r *flagReader) duration(name string, dst *time.Duration) {
	if r.changed(name) {
		*dst, r.err = r.cmd.Flags().GetDuration(name)
	}
}

func (r *flagReader) strings(name string, dst *[]string) {
	if r.changed(name) {
		*dst, r.err = r.cmd.Flags().GetStringSlice(name)
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	r := &flagReader{cmd: cmd}

	r.boolean("verbose", &cfg.Verbose)
	r.boolean("log-json", &cfg.LogJSON)

	r.integer("max-pages", &cfg.MaxPages)
	r.integer("workers", &cfg.Workers)
	r.duration("timeout", &cfg.Timeout)
	r.str("user-agent", &cfg.UserAgent)
	r.boolean("same-host", &cfg.SameHostOnly)
	r.boolean("skip-indexed", &cfg.SkipIndexed)
	r.strings("ignore", &cfg.IgnorePatterns)
	r.strings("follow", &cfg.FollowPatterns)
	r.integer("index-max-pages", &cfg.IndexMaxPages)
	r.boolean("track", &cfg.TrackerEnabled)
	r.boolean("no-save", &cfg.NoSave)
	r.str("socks5", &cfg.SOCKS5Proxy)
	r.boolean("embedded-tor", &cfg.EmbeddedTor)
	r.duration("tor-timeout", &cfg.TorStartupTimeout)
	r.str("backend", &cfg.StorageBackend)
	r.str("data-dir", &cfg.StoragePath)

	r.str("seed", &cfg.Seed)
	r.str("listen", &cfg.Listen)
	r.str("static", &cfg.StaticDir)
	r.str("analyzer", &cfg.AnalyzerURL)

	r.str("format", &cfg.ReportFormat)
	r.str("output", &cfg.ReportFile)

	return r.err
}

// newLogger builds the redacting logger and installs it as slog's default.
func newLogger(cfg *config.Config, base slog.Level) *slog.Logger {
	logger := trlog.NewLogger(os.Stderr, cfg.Verbose, cfg.LogJSON, trlog.WithBaseLevel(base))
	slog.SetDefault(logger)
	return logger
}

// storage bundles the snapshot backend with the optional SQLite database
// that also holds the articles table.
type storage struct {
	snapshotter persist.Snapshotter
	db          *database.DB
}

// openStorage opens the configured snapshot backend. The SQLite database is
// opened for the sqlite backend and whenever tracking is on; with the sqlite
// backend it serves both roles.
func openStorage(cfg *config.Config, withArticles bool) (*storage, error) {
	s := &storage{}

	if cfg.StorageBackend == config.BackendSQLite || withArticles {
		db, err := database.Open(cfg.StoragePath, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = db
	}

	if cfg.StorageBackend == config.BackendSQLite {
		s.snapshotter = s.db
	} else {
		s.snapshotter = persist.NewJSONFile(cfg.SnapshotPath())
	}
	return s, nil
}

// closers returns what has to be closed besides the snapshotter.
func (s *storage) closers() []io.Closer {
	if s.db != nil && s.snapshotter != persist.Snapshotter(s.db) {
		return []io.Closer{s.db}
	}
	return nil
}

// articles returns the article store, or nil without a database.
func (s *storage) articles() *database.ArticleStore {
	if s.db == nil {
		return nil
	}
	return s.db.Articles()
}

// loadStore restores the saved index. A failed load is logged and yields an
// empty store.
func loadStore(ctx context.Context, cfg *config.Config, s persist.Snapshotter, logger *slog.Logger) *index.Store {
	var opts []index.StoreOption
	if cfg.IndexMaxPages > 0 {
		opts = append(opts, index.WithCapacity(cfg.IndexMaxPages))
	}

	store, err := persist.LoadOrEmpty(ctx, s, opts...)
	if err != nil {
		logger.Warn("failed to load saved index, starting empty", "error", err)
	}
	logger.Info("index loaded", "pages", store.Len(), "tokens", store.TokenCount())
	return store
}

// newHTTPClient returns the client fetches go through. Without a proxy it
// returns nil and the fetcher uses its own client. The returned closer stops
// an embedded Tor daemon and is nil otherwise.
func newHTTPClient(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*http.Client, io.Closer, error) {
	switch {
	case cfg.SOCKS5Proxy != "":
		client, err := tor.NewClient(cfg.SOCKS5Proxy, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SOCKS5 client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("SOCKS5 proxy check failed: %s (make sure a proxy is running at %s): %w",
				status, cfg.SOCKS5Proxy, status.Error())
		}
		logger.Info("SOCKS5 proxy connection verified", "address", cfg.SOCKS5Proxy)
		return client.NewHTTPClient(), nil, nil

	case cfg.EmbeddedTor:
		return startEmbeddedTor(ctx, cfg, out, logger)

	default:
		return nil, nil, nil
	}
}

func startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*http.Client, io.Closer, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}
	fmt.Fprintf(out, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embedded.SocksAddr())
	return client.NewHTTPClient(), embedded, nil
}

// newCrawler wires fetcher, extractor and the optional hooks into a crawler
// writing to store.
func newCrawler(cfg *config.Config, store *index.Store, client *http.Client, m *metrics.Metrics, tracker crawler.StatusTracker, logger *slog.Logger) *crawler.Crawler {
	fetchOpts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithLogger(logger),
	}
	if cfg.MaxBodySize > 0 {
		fetchOpts = append(fetchOpts, fetcher.WithMaxBodySize(cfg.MaxBodySize))
	}
	if client != nil {
		fetchOpts = append(fetchOpts, fetcher.WithHTTPClient(client))
	}

	crawlOpts := []crawler.Option{
		crawler.WithWorkers(cfg.Workers),
		crawler.WithSameHost(cfg.SameHostOnly),
		crawler.WithSkipIndexed(cfg.SkipIndexed),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
		crawler.WithLogger(logger),
	}
	if m != nil {
		crawlOpts = append(crawlOpts, crawler.WithObserver(m))
	}
	if tracker != nil {
		crawlOpts = append(crawlOpts, crawler.WithTracker(tracker))
	}

	return crawler.New(fetcher.New(fetchOpts...), extractor.New(), store, crawlOpts...)
}
