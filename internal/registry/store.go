package registry

import "context"

// Store persists the identifier counter and the per-identifier version ledger.
// The counter is the high-water mark of all identifiers ever assigned; the
// ledger holds at most one version per identifier, last write wins.
//
// Two implementations exist: FileStore (the flat-file format the CI workflow
// shares between runs) and SQLiteStore (a transactional backend for setups
// that cannot rely on serialized runs).
type Store interface {
	// Counter returns the last-assigned identifier number, 0 if none yet.
	Counter(ctx context.Context) (int, error)
	// SetCounter persists a new high-water mark. Callers must only invoke
	// this after the rename that consumed the identifier succeeded.
	SetCounter(ctx context.Context, n int) error
	// Version returns the current version for an identifier, and whether
	// one exists.
	Version(ctx context.Context, id string) (Version, bool, error)
	// SetVersion overwrites the identifier's version.
	SetVersion(ctx context.Context, id string, v Version) error

	Close() error
}
