package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrArticleNotFound is returned when no article has the requested link.
	ErrArticleNotFound = errors.New("article not found")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid article status")
)

// Status is the processing state of an article.
type Status string

const (
	// StatusProcessed means the page was fetched and indexed.
	StatusProcessed Status = "processed"

	// StatusFailed means the page could not be fetched.
	StatusFailed Status = "failed to process"

	// StatusPending means the page was discovered but not fetched yet.
	StatusPending Status = "not processed yet"
)

// Statuses lists every valid status.
func Statuses() []Status {
	return []Status{StatusProcessed, StatusFailed, StatusPending}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessed, StatusFailed, StatusPending:
		return true
	default:
		return false
	}
}

// ParseStatus converts a status string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Article is one discovered URL and what happened to it.
type Article struct {
	ID        int64     `json:"id"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Status    Status    `json:"status"`
	Content   string    `json:"content"`
	Indices   []string  `json:"indices"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ArticleStore reads and writes the articles table.
// It satisfies crawler.StatusTracker.
type ArticleStore struct {
	db *sql.DB
}

// InsertIfAbsent stores a pending article for link unless one already
// exists. It reports whether a row was inserted.
func (s *ArticleStore) InsertIfAbsent(ctx context.Context, link, source string) (bool, error) {
	query := `
	INSERT INTO articles (link, source, status)
	VALUES (?, ?, ?)
	ON CONFLICT(link) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, link, source, string(StatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the indexed content and tokens for link, creating
// the article when it does not exist yet.
func (s *ArticleStore) MarkProcessed(ctx context.Context, link, source, content string, indices []string) error {
	if indices == nil {
		indices = []string{}
	}
	indicesJSON, err := json.Marshal(indices)
	if err != nil {
		return fmt.Errorf("failed to serialize indices: %w", err)
	}

	query := `
	INSERT INTO articles (link, source, status, content, indices)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(link) DO UPDATE SET
		status = excluded.status,
		content = excluded.content,
		indices = excluded.indices,
		updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, link, source, string(StatusProcessed), content, string(indicesJSON)); err != nil {
		return fmt.Errorf("failed to mark article processed: %w", err)
	}
	return nil
}

// MarkFailed records that link could not be processed, creating the article
// when it does not exist yet. Content and indices are left as they were.
func (s *ArticleStore) MarkFailed(ctx context.Context, link, source string) error {
	query := `
	INSERT INTO articles (link, source, status)
	VALUES (?, ?, ?)
	ON CONFLICT(link) DO UPDATE SET
		status = excluded.status,
		updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, link, source, string(StatusFailed)); err != nil {
		return fmt.Errorf("failed to mark article failed: %w", err)
	}
	return nil
}

// SetStatus changes the status of an existing article.
func (s *ArticleStore) SetStatus(ctx context.Context, link string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE articles SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE link = ?",
		string(status), link)
	if err != nil {
		return fmt.Errorf("failed to update article status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrArticleNotFound, link)
	}
	return nil
}

// Get returns the article stored for link.
func (s *ArticleStore) Get(ctx context.Context, link string) (*Article, error) {
	query := `
	SELECT id, link, source, status, content, indices, created_at, updated_at
	FROM articles
	WHERE link = ?
	`

	a, err := scanArticle(s.db.QueryRowContext(ctx, query, link))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, link)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

// ListByStatus returns every article with the given status, oldest first.
func (s *ArticleStore) ListByStatus(ctx context.Context, status Status) ([]*Article, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := `
	SELECT id, link, source, status, content, indices, created_at, updated_at
	FROM articles
	WHERE status = ?
	ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []*Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// CountByStatus returns the number of articles per status. Every status is
// present in the result, with zero when no article has it.
func (s *ArticleStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, 3)
	for _, st := range Statuses() {
		counts[st] = 0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM articles GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan article count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate article counts: %w", err)
	}
	return counts, nil
}

// Discovered stores a pending article for link.
func (s *ArticleStore) Discovered(ctx context.Context, link string) error {
	_, err := s.InsertIfAbsent(ctx, link, sourceOf(link))
	return err
}

// Processed marks link as processed with its content and tokens.
func (s *ArticleStore) Processed(ctx context.Context, link, content string, tokens []string) error {
	return s.MarkProcessed(ctx, link, sourceOf(link), content, tokens)
}

// Failed marks link as failed.
func (s *ArticleStore) Failed(ctx context.Context, link string) error {
	return s.MarkFailed(ctx, link, sourceOf(link))
}

// sourceOf returns the host of link, or link itself when it has none.
func sourceOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	return u.Host
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a           Article
		status      string
		indicesJSON string
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&a.ID, &a.Link, &a.Source, &status, &a.Content, &indicesJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.CreatedAt = parseTimestamp(createdAt)
	a.UpdatedAt = parseTimestamp(updatedAt)

	if err := json.Unmarshal([]byte(indicesJSON), &a.Indices); err != nil {
		return nil, fmt.Errorf("failed to parse indices: %w", err)
	}
	if a.Indices == nil {
		a.Indices = []string{}
	}
	return &a, nil
}
