package index

import (
	"sort"

	"github.com/nao1215/trugle/internal/model"
)

// Snapshot is the document form of a Store.
type Snapshot struct {
	// Pages maps canonical URL to the page's title and content.
	Pages map[string]PageRecord `json:"pages"`

	// Keywords maps token to the URLs containing it, in insertion order.
	Keywords map[string][]string `json:"keywords"`
}

// PageRecord is a page without its key.
type PageRecord struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewSnapshot returns an empty snapshot with non-nil maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Pages:    make(map[string]PageRecord),
		Keywords: make(map[string][]string),
	}
}

// Snapshot copies the store into a Snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Pages:    make(map[string]PageRecord, len(s.pages)),
		Keywords: make(map[string][]string, len(s.keywords)),
	}
	for u, p := range s.pages {
		snap.Pages[u] = PageRecord{Title: p.Title, Content: p.Content}
	}
	for tok, set := range s.keywords {
		snap.Keywords[tok] = set.list()
	}
	return snap
}

// FromSnapshot builds a Store from snap.
//
// Keyword order is taken from the snapshot. Entries that point at a missing
// page, or at a page whose content no longer yields the token, are dropped;
// tokens a page yields but the snapshot lacks are appended. The loaded store
// therefore always satisfies the same invariants as one built with Put.
// Capacity applies to later Put calls only; a snapshot is loaded whole.
func FromSnapshot(snap *Snapshot, opts ...StoreOption) *Store {
	s := NewStore(opts...)
	if snap == nil {
		return s
	}

	urls := make([]string, 0, len(snap.Pages))
	for u := range snap.Pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	pageTokens := make(map[string]map[string]struct{}, len(urls))
	for _, u := range urls {
		rec := snap.Pages[u]
		p := model.NewPage(u, rec.Title, rec.Content)
		s.pages[u] = p
		s.order = append(s.order, u)

		toks := make(map[string]struct{})
		for _, tok := range Tokenize(p.Content) {
			toks[tok] = struct{}{}
		}
		pageTokens[u] = toks
	}

	tokens := make([]string, 0, len(snap.Keywords))
	for tok := range snap.Keywords {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, tok := range tokens {
		for _, u := range snap.Keywords[tok] {
			toks, ok := pageTokens[u]
			if !ok {
				continue
			}
			if _, ok := toks[tok]; !ok {
				continue
			}
			s.addKeyword(tok, u)
		}
	}

	for _, u := range urls {
		for _, tok := range Tokenize(s.pages[u].Content) {
			s.addKeyword(tok, u)
		}
	}
	return s
}

func (s *Store) addKeyword(token, url string) {
	set, ok := s.keywords[token]
	if !ok {
		set = newURLSet()
		s.keywords[token] = set
	}
	set.add(url)
}
