// Package database provides SQLite-based storage for trugle.
//
// One database file holds two things:
//   - the index snapshot (pages and keyword postings), so *DB can stand in
//     for the JSON file as a persist.Snapshotter
//   - the articles document store, which records the processing status of
//     every URL the crawler has discovered
//
// SQLite is used through modernc.org/sqlite, which is CGO-free and keeps
// the whole database in a single file.
package database
