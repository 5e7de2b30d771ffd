package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedScheme is returned by Canonicalize for anything that
	// is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrMissingHost is returned by Canonicalize for URLs without a host.
	ErrMissingHost = errors.New("URL has no host")
)

// Canonicalize returns the key under which a URL is queued, visited and
// indexed: absolute http(s), fragment removed, scheme and host lowercased,
// and an empty path written as "/".
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", ErrMissingHost
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// frontier is the FIFO of URLs still to visit plus the run's visited set.
// It is owned by the coordinator goroutine and needs no locking.
type frontier struct {
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{
		queue:   make([]string, 0),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// offer enqueues u unless it was already visited or is already waiting.
func (f *frontier) offer(u string) bool {
	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// next dequeues the oldest URL and marks it visited.
func (f *frontier) next() (string, bool) {
	for len(f.queue) > 0 {
		u := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		delete(f.queued, u)
		if _, ok := f.visited[u]; ok {
			continue
		}
		f.visited[u] = struct{}{}
		return u, true
	}
	return "", false
}

func (f *frontier) len() int {
	return len(f.queue)
}

// pathFilter decides whether a URL path may be crawled.
// Ignore patterns win over follow patterns; an empty follow list allows
// every path that is not ignored.
type pathFilter struct {
	ignore []string
	follow []string
}

func (p pathFilter) allows(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, pattern := range p.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(p.follow) == 0 {
		return true
	}
	for _, pattern := range p.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a path against a glob.
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - anything else is a filepath.Match pattern
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}
