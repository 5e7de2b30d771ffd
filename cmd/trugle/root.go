package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for trugle.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trugle",
		Short: "Crawl the web and search what was found",
		Long: `trugle is a small web search engine.

It crawls pages breadth-first from a seed URL, indexes their visible text
and answers keyword searches through an HTTP API. The index is saved to
the XDG data directory after every crawl and loaded again on start.

Settings come from defaults, a .trugle YAML file, .env and TRUGLE_*
environment variables, and finally command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .trugle in current or home directory)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
