package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/trugle/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format followed by a newline.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report))
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a crawl report with derived fields.
type JSONReport struct {
	*model.CrawlReport

	// DurationMillis is FinishedAt - StartedAt in milliseconds.
	DurationMillis int64 `json:"duration_ms"`

	// FailureCounts maps error kind name to count.
	FailureCounts map[string]int `json:"failure_counts"`
}

// NewJSONReport creates the JSON form of report.
func NewJSONReport(report *model.CrawlReport) *JSONReport {
	counts := make(map[string]int)
	for kind, n := range report.FailuresByKind() {
		counts[kind.String()] = n
	}
	return &JSONReport{
		CrawlReport:    report,
		DurationMillis: report.Duration().Milliseconds(),
		FailureCounts:  counts,
	}
}
