package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/trugle/internal/index"
	"github.com/nao1215/trugle/internal/persist"
)

var _ persist.Snapshotter = (*DB)(nil)

// Save replaces the stored snapshot with the contents of store in a single
// transaction. Articles are left untouched.
func (d *DB) Save(ctx context.Context, store *index.Store) error {
	snap := store.Snapshot()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return persist.Wrap("begin snapshot transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM keywords"); err != nil {
		return persist.Wrap("clear keywords", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages"); err != nil {
		return persist.Wrap("clear pages", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, "INSERT INTO pages (url, title, content) VALUES (?, ?, ?)")
	if err != nil {
		return persist.Wrap("prepare page insert", err)
	}
	defer pageStmt.Close() //nolint:errcheck

	for url, rec := range snap.Pages {
		if _, err := pageStmt.ExecContext(ctx, url, rec.Title, rec.Content); err != nil {
			return persist.Wrap(fmt.Sprintf("insert page %s", url), err)
		}
	}

	kwStmt, err := tx.PrepareContext(ctx, "INSERT INTO keywords (token, url, position) VALUES (?, ?, ?)")
	if err != nil {
		return persist.Wrap("prepare keyword insert", err)
	}
	defer kwStmt.Close() //nolint:errcheck

	for token, urls := range snap.Keywords {
		for pos, url := range urls {
			if _, err := kwStmt.ExecContext(ctx, token, url, pos); err != nil {
				return persist.Wrap(fmt.Sprintf("insert keyword %s", token), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return persist.Wrap("commit snapshot", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty store.
func (d *DB) Load(ctx context.Context, opts ...index.StoreOption) (*index.Store, error) {
	snap := index.NewSnapshot()

	if err := d.loadPages(ctx, snap); err != nil {
		return nil, err
	}
	if err := d.loadKeywords(ctx, snap); err != nil {
		return nil, err
	}
	return index.FromSnapshot(snap, opts...), nil
}

func (d *DB) loadPages(ctx context.Context, snap *index.Snapshot) error {
	rows, err := d.db.QueryContext(ctx, "SELECT url, title, content FROM pages")
	if err != nil {
		return persist.Wrap("query pages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		var rec index.PageRecord
		if err := rows.Scan(&url, &rec.Title, &rec.Content); err != nil {
			return persist.Wrap("scan page", err)
		}
		snap.Pages[url] = rec
	}
	return persist.Wrap("iterate pages", rows.Err())
}

func (d *DB) loadKeywords(ctx context.Context, snap *index.Snapshot) error {
	rows, err := d.db.QueryContext(ctx, "SELECT token, url FROM keywords ORDER BY token, position")
	if err != nil {
		return persist.Wrap("query keywords", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, url string
		if err := rows.Scan(&token, &url); err != nil {
			return persist.Wrap("scan keyword", err)
		}
		snap.Keywords[token] = append(snap.Keywords[token], url)
	}
	return persist.Wrap("iterate keywords", rows.Err())
}

// PageCount returns the number of pages in the stored snapshot.
func (d *DB) PageCount(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, persist.Wrap("count pages", err)
	}
	return n, nil
}
