package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/trugle/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	r := model.NewCrawlReport("run-42", "http://example.com/", 5)
	r.StartedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r.FinishedAt = r.StartedAt.Add(1500 * time.Millisecond)
	r.PagesCrawled = 2
	r.Visited = []string{"http://example.com/", "http://example.com/a", "http://example.com/b", "http://example.com/c"}
	r.AddFailure(model.Failure{URL: "http://example.com/b", Kind: model.ErrorKindHTTPStatus, StatusCode: 404, Message: "unexpected status 404"})
	r.AddFailure(model.Failure{URL: "http://example.com/c", Kind: model.ErrorKindConnectionFailed, Message: "connection refused"})
	return r
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("returned %d bytes, buffer has %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"TRUGLE CRAWL REPORT",
			"run-42",
			"Pages Crawled:  2 / 5",
			"Duration:       1.5s",
			"[Http Status] 1",
			"[Connection Failed] 1",
			"http://example.com/b",
			"unexpected status 404",
			"Complete (frontier exhausted)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "VISITED") {
			t.Error("visited list should only appear in verbose mode")
		}
	})

	t.Run("verbose lists visited URLs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[+] http://example.com/a") {
			t.Errorf("expected visited URL in output:\n%s", buf.String())
		}
	})

	t.Run("cancelled with warnings", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Cancelled = true
		r.AddWarning("failed to save snapshot: disk full")

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if !strings.Contains(output, "Cancelled (partial results)") {
			t.Error("expected cancelled status")
		}
		if !strings.Contains(output, "! failed to save snapshot: disk full") {
			t.Error("expected warning line")
		}
	})

	t.Run("clean report has no failure section", func(t *testing.T) {
		t.Parallel()

		r := model.NewCrawlReport("run-1", "http://example.com/", 1)
		r.PagesCrawled = 1
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "FAILURES") {
			t.Error("unexpected failure section")
		}
		if !strings.Contains(buf.String(), "Complete (page budget reached)") {
			t.Errorf("unexpected status:\n%s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got %q", buf.String())
		}
	})

	t.Run("includes derived fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}

		var got struct {
			RunID          string         `json:"run_id"`
			PagesCrawled   int            `json:"pages_crawled"`
			DurationMillis int64          `json:"duration_ms"`
			FailureCounts  map[string]int `json:"failure_counts"`
			Failures       []struct {
				Kind string `json:"kind"`
			} `json:"failures"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if got.RunID != "run-42" || got.PagesCrawled != 2 || got.DurationMillis != 1500 {
			t.Errorf("unexpected fields %+v", got)
		}
		if got.FailureCounts["http_status"] != 1 || got.FailureCounts["connection_failed"] != 1 {
			t.Errorf("FailureCounts = %v", got.FailureCounts)
		}
		if len(got.Failures) != 2 || got.Failures[0].Kind != "http_status" {
			t.Errorf("Failures = %+v", got.Failures)
		}
		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected indented output")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes table chart and failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"| Property",
			"run-42",
			"mermaid",
			"pie",
			"Failures by Kind",
			"Connection Failed",
			"## Failures",
			"http://example.com/c",
			"## Visited",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("clean report has tip and no chart", func(t *testing.T) {
		t.Parallel()

		r := model.NewCrawlReport("run-1", "http://example.com/", 1)
		r.PagesCrawled = 1
		r.Visited = []string{"http://example.com/"}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if strings.Contains(output, "mermaid") {
			t.Error("unexpected chart for a report without failures")
		}
		if !strings.Contains(output, "TIP") {
			t.Errorf("expected a tip alert:\n%s", output)
		}
		if !strings.Contains(output, "No fetch failures.") {
			t.Error("expected empty failure text")
		}
	})

	t.Run("cancelled report warns", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Cancelled = true
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "WARNING") {
			t.Errorf("expected a warning alert:\n%s", buf.String())
		}
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: ""},
		{format: "text"},
		{format: "JSON"},
		{format: "markdown"},
		{format: "md"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			w, err := New(tt.format, &bytes.Buffer{}, false)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil || w == nil {
				t.Errorf("New(%q) = %v, %v", tt.format, w, err)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write(*model.CrawlReport) (int, error) {
	return 0, errors.New("boom")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b)).Write(createTestReport())
		if err != nil {
			t.Fatal(err)
		}
		if a.Len() == 0 || b.Len() == 0 || n != a.Len()+b.Len() {
			t.Errorf("n = %d, a = %d, b = %d", n, a.Len(), b.Len())
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var b bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewJSONWriter(&b)).Write(createTestReport())
		if err == nil {
			t.Error("expected error")
		}
		if b.Len() != 0 {
			t.Error("writers after a failure must not run")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := truncateString("日本語テキスト", 5); got != "日本..." {
		t.Errorf("got %q", got)
	}
}
