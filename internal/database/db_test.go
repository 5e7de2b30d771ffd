package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/persist"
)

var _ crawler.StatusTracker = (*ArticleStore)(nil)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

func TestDB_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := index.NewStore()
	_ = store.Put("http://b.test/", "B", "truth banana")
	_ = store.Put("http://a.test/", "A", "truth apple")

	if err := db.Save(ctx, store); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(store.Snapshot(), loaded.Snapshot()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"http://b.test/", "http://a.test/"}, loaded.TokenURLs("truth")); diff != "" {
		t.Errorf("keyword order mismatch (-want +got):\n%s", diff)
	}

	n, err := db.PageCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("PageCount() = %d, want 2", n)
	}
}

func TestDB_SaveReplaces(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := index.NewStore()
	_ = first.Put("http://old.test/", "Old", "stale words")
	if err := db.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := index.NewStore()
	_ = second.Put("http://new.test/", "New", "fresh words")
	if err := db.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Has("http://old.test/") {
		t.Error("old page survived a full replace")
	}
	if len(loaded.TokenURLs("stale")) != 0 {
		t.Error("old keyword survived a full replace")
	}
	if diff := cmp.Diff([]string{"http://new.test/"}, loaded.TokenURLs("words")); diff != "" {
		t.Errorf("TokenURLs(words) mismatch (-want +got):\n%s", diff)
	}
}

func TestDB_LoadEmpty(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	store, err := db.Load(context.Background(), index.WithCapacity(5))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if store.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", store.Capacity())
	}
}

func TestDB_SaveAfterClose(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	cleanup()

	err := db.Save(context.Background(), index.NewStore())
	if !errors.Is(err, persist.ErrPersistence) {
		t.Errorf("Save() error = %v, want ErrPersistence", err)
	}
	_, err = db.Load(context.Background())
	if !errors.Is(err, persist.ErrPersistence) {
		t.Errorf("Load() error = %v, want ErrPersistence", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite default", input: "2024-01-15 10:30:00"},
		{name: "iso with z", input: "2024-01-15T10:30:00Z"},
		{name: "rfc3339 nano", input: "2024-01-15T10:30:00.123456789Z"},
		{name: "garbage", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v, zero = %v", tt.input, got, tt.zero)
			}
		})
	}
}
