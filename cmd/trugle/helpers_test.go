package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newSite serves a three page site: / links to /a and /b, /a links to /b.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/":  page("Home", "welcome truth seekers", "/a", "/b"),
		"/a": page("Apples", "the truth about apples", "/b"),
		"/b": page("Bananas", "bananas are yellow"),
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func page(title, text string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><p>%s</p>", title, text)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// writeConfig writes a config file keeping all data in dataDir.
func writeConfig(t *testing.T, dataDir, extra string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trugle.yaml")
	body := fmt.Sprintf("workers: 1\nstorage:\n  path: %q\n%s", dataDir, extra)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
