// Package report writes crawl reports.
//
// Writers for three formats are provided:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a failure chart
//
// Writers implement the Writer interface and can be combined with
// MultiWriter, for example to print a summary while saving a JSON copy.
package report
