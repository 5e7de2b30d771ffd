package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/trugle/internal/index"
)

// DefaultJSONFileName is the snapshot file name inside the data directory.
const DefaultJSONFileName = "index.json"

// JSONFile keeps the snapshot in a single JSON document.
type JSONFile struct {
	path string
}

var _ Snapshotter = (*JSONFile)(nil)

// NewJSONFile returns a JSONFile writing to path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the snapshot file path.
func (j *JSONFile) Path() string {
	return j.path
}

// Save writes the snapshot to a temporary file in the same directory and
// renames it over the old one, so a crash never leaves a half-written file.
func (j *JSONFile) Save(ctx context.Context, store *index.Store) error {
	if err := ctx.Err(); err != nil {
		return Wrap("save snapshot", err)
	}

	data, err := json.Marshal(store.Snapshot())
	if err != nil {
		return Wrap("encode snapshot", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Wrap("create data dir", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return Wrap("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck
		return Wrap("write snapshot", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck
		return Wrap("sync snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return Wrap("close snapshot", err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return Wrap("replace snapshot", err)
	}
	return nil
}

// Load reads the snapshot. A missing file yields an empty store.
func (j *JSONFile) Load(ctx context.Context, opts ...index.StoreOption) (*index.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("load snapshot", err)
	}

	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return index.NewStore(opts...), nil
	}
	if err != nil {
		return nil, Wrap("read snapshot", err)
	}

	snap := index.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, Wrap(fmt.Sprintf("decode %s", j.path), err)
	}
	return index.FromSnapshot(snap, opts...), nil
}

// Close is a no-op.
func (j *JSONFile) Close() error {
	return nil
}
