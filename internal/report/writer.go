package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/trugle/internal/model"
)

// Format names accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Writer outputs a crawl report.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// New returns the writer for format. format is matched case-insensitively
// and "md" is accepted for Markdown.
func New(format string, output io.Writer, verbose bool) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return NewSimpleWriter(output, WithVerbose(verbose)), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// MultiWriter writes to multiple Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// kindLabel turns an error kind into a heading, "connection_failed"
// becoming "Connection Failed".
func kindLabel(k model.ErrorKind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(k.String(), "_", " "))
}

// statusText summarizes how the run ended.
func statusText(r *model.CrawlReport) string {
	switch {
	case r.Cancelled:
		return "Cancelled (partial results)"
	case r.StoreFull:
		return "Stopped (index store full)"
	case r.PagesCrawled >= r.MaxPages:
		return "Complete (page budget reached)"
	default:
		return "Complete (frontier exhausted)"
	}
}

const timeLayout = "2006-01-02 15:04:05 MST"
