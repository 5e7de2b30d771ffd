package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/trugle/internal/model"
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// verbose adds the list of visited URLs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with the visited URLs.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeFailures(&sb, report)
	w.writeWarnings(&sb, report)
	if w.verbose {
		w.writeVisited(&sb, report)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        TRUGLE CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", r.RunID)
	fmt.Fprintf(sb, "Seed:           %s\n", r.Seed)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:        %s\n", r.StartedAt.Format(timeLayout))
	}
	fmt.Fprintf(sb, "Duration:       %s\n", r.Duration())
	fmt.Fprintf(sb, "Pages Crawled:  %d / %d\n", r.PagesCrawled, r.MaxPages)
	fmt.Fprintf(sb, "Visited:        %d\n", len(r.Visited))
	fmt.Fprintf(sb, "Failures:       %d\n", len(r.Failures))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(r))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, r *model.CrawlReport) {
	if len(r.Failures) == 0 {
		return
	}
	section(sb, "FAILURES")

	counts := r.FailuresByKind()
	for _, kind := range r.FailureKinds() {
		fmt.Fprintf(sb, "[%s] %d\n", kindLabel(kind), counts[kind])
		for _, f := range r.Failures {
			if f.Kind != kind {
				continue
			}
			fmt.Fprintf(sb, "  * %s\n", f.URL)
			if f.Message != "" {
				fmt.Fprintf(sb, "    %s\n", f.Message)
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeWarnings(sb *strings.Builder, r *model.CrawlReport) {
	if !r.HasWarnings() {
		return
	}
	section(sb, "WARNINGS")
	for _, msg := range r.Warnings {
		fmt.Fprintf(sb, "  ! %s\n", msg)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVisited(sb *strings.Builder, r *model.CrawlReport) {
	section(sb, "VISITED")
	if len(r.Visited) == 0 {
		sb.WriteString("  No URLs visited\n\n")
		return
	}
	for _, u := range r.Visited {
		fmt.Fprintf(sb, "  [+] %s\n", u)
	}
	sb.WriteString("\n")
}
