package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"progression/internal/score"
)

// documentVersion is the layout version written to ledger files.
const documentVersion = 1

// document is the on-disk layout of a ledger file.
type document struct {
	Version    int           `yaml:"version"`
	Aggregates Aggregates    `yaml:"aggregates"`
	Entries    []score.Entry `yaml:"entries"`
}

// FileStore keeps the ledger in a single YAML file, one list item per date.
type FileStore struct {
	path string // ledger file
}

// Load reads the ledger file. A missing file is an empty ledger.
// Stored aggregates that disagree with the entries are logged and replaced by the fold.
func (fs *FileStore) Load(ctx context.Context) (*Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Ledger{}, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", fs.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", fs.path, err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("ledger %s: unsupported version %d", fs.path, doc.Version)
	}

	l, err := New(doc.Entries)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", fs.path, err)
	}
	if len(doc.Entries) > 0 && doc.Aggregates != l.Aggregates {
		slog.Warn("ledger aggregates drift, using recomputed values", "path", fs.path, "stored", doc.Aggregates, "computed", l.Aggregates)
	}
	return l, nil
}

// Save writes the ledger to a temporary file in the same directory, syncs it and
// renames it over the ledger file. The previous file stays intact on failure.
func (fs *FileStore) Save(ctx context.Context, l *Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := yaml.Marshal(document{
		Version:    documentVersion,
		Aggregates: Aggregate(l.Entries),
		Entries:    l.Entries,
	})
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return WriteFileAtomic(fs.path, content)
}

// Lock takes the writer lock on <path>.lock.
func (fs *FileStore) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return nil, err
	}
	return lockPath(ctx, fs.path+".lock")
}

func (fs *FileStore) Close() error {
	return nil
}

// NewFileStore creates a FileStore over path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// WriteFileAtomic replaces path with content via a synced temporary file and rename.
func WriteFileAtomic(path string, content []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
