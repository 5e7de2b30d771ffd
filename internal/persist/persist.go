// Package persist saves and restores complete index snapshots.
//
// A Snapshotter writes the whole store at once; there are no incremental
// updates. Two backends exist: JSONFile in this package and the SQLite
// backend in internal/database. Every backend error wraps ErrPersistence so
// callers can degrade gracefully with one errors.Is check.
package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/trugle/internal/index"
)

// ErrPersistence marks a snapshot read or write failure.
var ErrPersistence = errors.New("persistence error")

// Snapshotter stores and restores an index.Store.
type Snapshotter interface {
	// Save replaces the durable snapshot with the current store contents.
	Save(ctx context.Context, store *index.Store) error

	// Load reads the snapshot. A missing snapshot yields an empty store and
	// a nil error.
	Load(ctx context.Context, opts ...index.StoreOption) (*index.Store, error)

	// Close releases backend resources.
	Close() error
}

// Wrap annotates err with ErrPersistence and an operation description.
// It returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// LoadOrEmpty loads from s, falling back to an empty store when loading
// fails. The returned error is the load failure, for the caller to report
// as a warning; the store is always usable.
func LoadOrEmpty(ctx context.Context, s Snapshotter, opts ...index.StoreOption) (*index.Store, error) {
	store, err := s.Load(ctx, opts...)
	if err != nil {
		return index.NewStore(opts...), err
	}
	return store, nil
}
