package model

import "unicode/utf8"

const (
	// MaxContentLength is the maximum number of characters (runes) of body
	// text stored per page.
	MaxContentLength = 1000

	// NoTitle is stored when a document has no usable <title>.
	NoTitle = "No Title"
)

// Page is one indexed document.
// A Page is created on successful fetch and extraction and is never
// mutated afterwards; re-crawling a URL replaces the whole value.
type Page struct {
	// URL is the canonical absolute URL of the page. It is the page's key.
	URL string `json:"url"`

	// Title is the text of the <title> element, or NoTitle.
	Title string `json:"title"`

	// Content is the whitespace-normalized visible text of the body,
	// truncated to MaxContentLength runes.
	Content string `json:"content"`
}

// NewPage builds a Page, applying the title placeholder and the content cap.
func NewPage(url, title, content string) Page {
	if title == "" {
		title = NoTitle
	}
	return Page{
		URL:     url,
		Title:   title,
		Content: TruncateRunes(content, MaxContentLength),
	}
}

// TruncateRunes returns the first n runes of s.
// Byte slicing would split multi-byte characters, so the cut is made on a
// rune boundary.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
