package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/trugle/internal/config"
	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/model"
	"github.com/nao1215/trugle/internal/report"
	"github.com/nao1215/trugle/internal/service"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl from a seed URL and save the index",
		Long: `Crawl fetches pages breadth-first starting at the seed URL, indexes
their text and saves the index to the data directory.

The crawl stops when the page budget is used up or no links are left.
Pages that cannot be fetched are listed in the report; they never stop
the crawl. Ctrl+C stops early and still saves what was crawled, unless
--no-save is given.

Without an argument the seed from the configuration is used.

Examples:
  # Crawl up to 50 pages
  trugle crawl https://example.com/

  # Stay on one host with 8 concurrent fetches
  trugle crawl --same-host -w 8 -p 200 https://example.com/

  # Write a Markdown report to a file
  trugle crawl -f markdown -o reports/crawl.md https://example.com/

  # Fetch through a local Tor daemon
  trugle crawl --socks5 127.0.0.1:9050 https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().StringP("format", "f", "text", "Report format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	if cfg.Seed == "" {
		return config.ErrNoSeed
	}

	logger := newLogger(cfg, slog.LevelWarn)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawlReport, err := runCrawl(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	return writeReport(cmd, cfg, crawlReport)
}

// runCrawl performs one crawl and saves the index.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (_ *model.CrawlReport, err error) {
	st, err := openStorage(cfg, cfg.TrackerEnabled)
	if err != nil {
		return nil, err
	}

	closers := st.closers()
	client, torCloser, err := newHTTPClient(ctx, cfg, cmd.ErrOrStderr(), logger)
	if err != nil {
		_ = st.snapshotter.Close() //nolint:errcheck
		for _, c := range closers {
			_ = c.Close() //nolint:errcheck
		}
		return nil, err
	}
	if torCloser != nil {
		closers = append(closers, torCloser)
	}

	store := loadStore(ctx, cfg, st.snapshotter, logger)

	var tracker crawler.StatusTracker
	if cfg.TrackerEnabled {
		tracker = st.articles()
	}
	c := newCrawler(cfg, store, client, nil, tracker, logger)

	svc := service.New(c, store,
		service.WithSnapshotter(st.snapshotter),
		service.WithLogger(logger),
		service.WithSaveOnCancel(!cfg.NoSave),
	)
	defer func() {
		if cerr := svc.Close(closers...); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close storage: %w", cerr)
		}
	}()

	logger.Info("starting crawl",
		"seed", cfg.Seed,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"backend", cfg.StorageBackend,
	)

	crawlReport, err := svc.Crawl(ctx, cfg.Seed, cfg.MaxPages)
	if err != nil {
		return nil, err
	}

	for _, w := range crawlReport.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	if crawlReport.Cancelled {
		fmt.Fprintln(cmd.ErrOrStderr(), "Crawl cancelled, partial results kept.")
	}
	return crawlReport, nil
}

// writeReport writes the crawl report to stdout or the configured file.
func writeReport(cmd *cobra.Command, cfg *config.Config, crawlReport *model.CrawlReport) error {
	var output io.Writer = cmd.OutOrStdout()
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w, err := report.New(cfg.ReportFormat, output, cfg.Verbose)
	if err != nil {
		return err
	}
	if _, err := w.Write(crawlReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
