package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrLocked is returned when another run holds the writer lock.
var ErrLocked = errors.New("ledger is locked by another run")

// lockRetry is the polling interval while waiting for the writer lock.
const lockRetry = 50 * time.Millisecond

// Store persists a ledger.
//
// Save replaces the persisted ledger as a whole: readers observe either the previous
// or the new ledger, never a mix. Lock serializes writers across processes; callers
// hold it from Load through Save and release it on every path.
type Store interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
	Lock(ctx context.Context) (unlock func() error, err error)
	Close() error
}

// Open creates the store of the given backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", backend)
	}
}

// lockPath acquires an exclusive advisory lock on path, waiting until ctx is done.
func lockPath(ctx context.Context, path string) (func() error, error) {
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return fl.Unlock, nil
}
