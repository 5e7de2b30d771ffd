package index

import (
	"errors"
	"sync"

	"github.com/nao1215/trugle/internal/model"
)

// ErrStoreFull is returned by Put when the store has reached its capacity
// and the URL is not already present.
var ErrStoreFull = errors.New("index store is full")

// Store owns the pages and the inverted index.
// The zero value is not usable; create one with NewStore.
type Store struct {
	// mu guards every field below.
	mu sync.RWMutex

	// pages maps canonical URL to page.
	pages map[string]model.Page

	// order is the page insertion order, used by Pages.
	order []string

	// keywords maps token to the ordered set of URLs containing it.
	keywords map[string]*urlSet

	// capacity caps the number of pages. 0 means unbounded.
	capacity int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCapacity caps the number of pages the store accepts.
// 0 (the default) leaves the store unbounded.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		pages:    make(map[string]model.Page),
		order:    make([]string, 0),
		keywords: make(map[string]*urlSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put creates or overwrites the page stored under url and updates the
// inverted index.
//
// Putting the same url and content again leaves every token's URL set
// unchanged, order included. When content changes, url is dropped from the
// tokens that no longer occur and appended to the tokens that are new.
func (s *Store) Put(url, title, content string) error {
	page := model.NewPage(url, title, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.pages[url]
	if !exists && s.capacity > 0 && len(s.pages) >= s.capacity {
		return ErrStoreFull
	}

	newTokens := Tokenize(page.Content)
	if exists {
		keep := make(map[string]struct{}, len(newTokens))
		for _, tok := range newTokens {
			keep[tok] = struct{}{}
		}
		for _, tok := range Tokenize(old.Content) {
			if _, ok := keep[tok]; ok {
				continue
			}
			s.removeKeyword(tok, url)
		}
	} else {
		s.order = append(s.order, url)
	}

	s.pages[url] = page
	for _, tok := range newTokens {
		s.addKeyword(tok, url)
	}
	return nil
}

// removeKeyword drops url from token's set and deletes the token once its
// set is empty. Callers hold the write lock.
func (s *Store) removeKeyword(token, url string) {
	set, ok := s.keywords[token]
	if !ok {
		return
	}
	set.remove(url)
	if set.len() == 0 {
		delete(s.keywords, token)
	}
}

// Page returns the page stored under url.
func (s *Store) Page(url string) (model.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[url]
	return p, ok
}

// Has reports whether a page is stored under url.
func (s *Store) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pages[url]
	return ok
}

// TokenURLs returns the URLs whose content contains token, in the order
// they were first indexed. The result is a copy and never nil.
func (s *Store) TokenURLs(token string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.keywords[token]
	if !ok {
		return []string{}
	}
	return set.list()
}

// Lookup resolves tokens in order and returns the matching pages,
// each URL once, in union-insertion order. The whole lookup runs under one
// read lock.
func (s *Store) Lookup(tokens []string) []model.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	pages := make([]model.Page, 0)
	for _, tok := range tokens {
		set, ok := s.keywords[tok]
		if !ok {
			continue
		}
		for _, u := range set.urls {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			if p, ok := s.pages[u]; ok {
				pages = append(pages, p)
			}
		}
	}
	return pages
}

// Pages returns every page in insertion order.
func (s *Store) Pages() []model.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]model.Page, 0, len(s.order))
	for _, u := range s.order {
		pages = append(pages, s.pages[u])
	}
	return pages
}

// Len returns the number of pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// TokenCount returns the number of distinct tokens.
func (s *Store) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keywords)
}

// Capacity returns the configured page cap, 0 when unbounded.
func (s *Store) Capacity() int {
	return s.capacity
}

// Reset removes every page and index entry.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[string]model.Page)
	s.order = make([]string, 0)
	s.keywords = make(map[string]*urlSet)
}

// urlSet is an insertion-ordered set of URLs.
type urlSet struct {
	urls    []string
	members map[string]struct{}
}

func newURLSet() *urlSet {
	return &urlSet{members: make(map[string]struct{})}
}

func (u *urlSet) add(url string) {
	if _, ok := u.members[url]; ok {
		return
	}
	u.members[url] = struct{}{}
	u.urls = append(u.urls, url)
}

func (u *urlSet) remove(url string) {
	if _, ok := u.members[url]; !ok {
		return
	}
	delete(u.members, url)
	for i, v := range u.urls {
		if v == url {
			u.urls = append(u.urls[:i], u.urls[i+1:]...)
			return
		}
	}
}

func (u *urlSet) len() int {
	return len(u.urls)
}

func (u *urlSet) list() []string {
	out := make([]string, len(u.urls))
	copy(out, u.urls)
	return out
}
