package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/trugle/internal/query"
)

// defaultSearchLimit caps the results printed by search.
const defaultSearchLimit = 10

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search the saved index",
		Long: `Search loads the saved index and prints the pages matching the query.

A page matches when its text contains at least one query word. Words
shorter than three characters are ignored.

Examples:
  trugle search truth
  trugle search -n 3 --json "climate change"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearchCmd,
	}

	addStorageFlags(cmd)
	cmd.Flags().IntP("limit", "n", defaultSearchLimit, "Maximum number of results")
	cmd.Flags().BoolP("json", "j", false, "Print results as JSON")

	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, slog.LevelWarn)

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	st, err := openStorage(cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.snapshotter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close storage: %w", cerr)
		}
	}()

	store := loadStore(cmd.Context(), cfg, st.snapshotter, logger)
	q := strings.Join(args, " ")
	results := query.NewEngine(store, query.WithLogger(logger)).SearchN(q, limit)

	if asJSON {
		return printResultsJSON(cmd.OutOrStdout(), q, results)
	}
	printResults(cmd.OutOrStdout(), q, results)
	return nil
}

func printResults(w io.Writer, q string, results []query.Result) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", q)
		return
	}
	fmt.Fprintf(w, "%d result(s) for %q\n\n", len(results), q)
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
}

func printResultsJSON(w io.Writer, q string, results []query.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Query   string         `json:"query"`
		Results []query.Result `json:"results"`
	}{Query: q, Results: results})
}
