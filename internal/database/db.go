package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file name inside the data directory.
const FileName = "trugle.db"

// DB provides SQLite-based storage for index snapshots and articles.
type DB struct {
	db *sql.DB

	// path is the path to the SQLite database file.
	path string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database file inside dir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dir string, opts Options) (*DB, error) {
	path := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", path)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := path + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d := &DB{
		db:   db,
		path: path,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := d.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Articles returns the articles document store backed by d.
func (d *DB) Articles() *ArticleStore {
	return &ArticleStore{db: d.db}
}

// createTables creates the database schema if it doesn't exist.
func (d *DB) createTables() error {
	schema := `
	-- Pages of the last saved index snapshot
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL
	);

	-- Keyword postings; position keeps per-token insertion order
	CREATE TABLE IF NOT EXISTS keywords (
		token TEXT NOT NULL,
		url TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (token, url)
	);

	CREATE INDEX IF NOT EXISTS idx_keywords_token_position ON keywords(token, position);

	-- Articles track the processing status of every discovered URL
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'not processed yet'
			CHECK (status IN ('processed', 'failed to process', 'not processed yet')),
		content TEXT NOT NULL DEFAULT '',
		indices TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	`

	_, err := d.db.ExecContext(context.Background(), schema)
	return err
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries every known SQLite timestamp format and returns the
// zero time when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
