// Package extractor turns a fetched HTML document into a title, normalized
// body text and the list of outgoing links.
//
// Extraction never fails. A document that cannot be parsed degrades to the
// NoTitle placeholder, empty content and no links.
package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/trugle/internal/model"
)

// Result is what Extract produces for one document.
type Result struct {
	// Title is the collapsed <title> text, or model.NoTitle.
	Title string

	// Content is the visible body text, whitespace collapsed, trimmed and
	// truncated.
	Content string

	// Links holds every <a href> resolved to an absolute URL, in document
	// order. Duplicates and non-HTTP schemes are kept; the frontier filters.
	Links []string
}

// Extractor is safe for concurrent use.
type Extractor struct {
	policy     *bluemonday.Policy
	maxContent int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxContentLength sets how many runes of body text are kept.
func WithMaxContentLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxContent = n
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		policy:     bluemonday.StrictPolicy(),
		maxContent: model.MaxContentLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses raw as HTML. baseURL is the document's own URL and is used
// to resolve relative links unless the document declares <base href>.
func (e *Extractor) Extract(raw []byte, baseURL string) Result {
	res := Result{Title: model.NoTitle, Links: make([]string, 0)}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return res
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	var (
		title    string
		body     *html.Node
		baseSeen bool
		hrefs    []string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = collapse(textOf(n))
				}
			case atom.Body:
				if body == nil {
					body = n
				}
			case atom.Base:
				if !baseSeen {
					if href, ok := attr(n, "href"); ok {
						baseSeen = true
						if b := resolve(base, href); b != nil {
							base = b
						}
					}
				}
			case atom.A:
				if href, ok := attr(n, "href"); ok {
					hrefs = append(hrefs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if title != "" {
		res.Title = title
	}
	if body != nil {
		res.Content = e.bodyText(body)
	}
	for _, href := range hrefs {
		if u := resolve(base, href); u != nil {
			res.Links = append(res.Links, u.String())
		}
	}
	return res
}

// bodyText renders the body subtree and strips it to text with the strict
// policy, which also drops script and style contents. Text of adjacent
// elements is concatenated as-is: <p>one</p><p>two</p> yields "onetwo".
func (e *Extractor) bodyText(body *html.Node) string {
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	text := e.policy.SanitizeBytes(buf.Bytes())
	return model.TruncateRunes(collapse(html.UnescapeString(string(text))), e.maxContent)
}

// resolve parses href and resolves it against base. Unparseable hrefs and
// relative hrefs without a usable base yield nil.
func resolve(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	if base == nil {
		if !ref.IsAbs() {
			return nil
		}
		return ref
	}
	return base.ResolveReference(ref)
}

// collapse replaces whitespace runs with one space and trims the result.
// Whitespace is unicode.IsSpace, the same set index.Tokenize splits on.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textOf concatenates the text nodes below n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
