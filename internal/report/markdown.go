package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/trugle/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeFailures(md, report)
	w.writeWarnings(md, report)
	w.writeVisited(md, report)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by trugle*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + r.RunID + "`"},
		{"Seed", r.Seed},
	}
	if !r.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", r.StartedAt.Format(timeLayout)})
	}
	rows = append(rows,
		[]string{"Duration", r.Duration().String()},
		[]string{"Pages Crawled", strconv.Itoa(r.PagesCrawled) + " / " + strconv.Itoa(r.MaxPages)},
		[]string{"Visited", strconv.Itoa(len(r.Visited))},
		[]string{"Failures", strconv.Itoa(len(r.Failures))},
		[]string{"Status", statusText(r)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.CrawlReport) {
	switch {
	case r.Cancelled:
		md.Warningf("The crawl was cancelled after %d page(s); results are partial.", r.PagesCrawled)
	case r.HasWarnings():
		md.Importantf("%d warning(s) were recorded during the run.", len(r.Warnings))
	case r.PagesCrawled == 0 && len(r.Failures) > 0:
		md.Cautionf("No page could be indexed; %d fetch(es) failed.", len(r.Failures))
	case len(r.Failures) > 0:
		md.Note("Some pages could not be fetched. See the failures below.")
	default:
		md.Tip("Every visited page was indexed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(r.Failures) == 0 {
		md.PlainText("No fetch failures.")
		md.PlainText("")
		return
	}

	counts := r.FailuresByKind()
	kinds := r.FailureKinds()

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failures by Kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range kinds {
		chart.LabelAndIntValue(kindLabel(kind), uint64(counts[kind])) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	rows := make([][]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		msg := f.Message
		if msg == "" {
			msg = "-"
		}
		rows = append(rows, []string{f.URL, kindLabel(f.Kind), status, truncateString(msg, 60)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Status", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, r *model.CrawlReport) {
	if !r.HasWarnings() {
		return
	}
	md.H2("Warnings")
	md.PlainText("")
	md.BulletList(r.Warnings...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeVisited(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Visited")
	md.PlainText("")
	if len(r.Visited) == 0 {
		md.PlainText("No URLs visited.")
		md.PlainText("")
		return
	}
	md.Details("Visited URLs ("+strconv.Itoa(len(r.Visited))+")", "- "+strings.Join(r.Visited, "\n- "))
	md.PlainText("")
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
