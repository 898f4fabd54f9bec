package registry

import (
	"context"
	"fmt"
)

// Versioner computes the next version for a processed diagram and records it
// in the store.
type Versioner struct {
	Store Store
}

// ErrNoIdentifier is returned when version computation is attempted on a path
// that carries no identifier. Identifier assignment must run first.
var ErrNoIdentifier = fmt.Errorf("registry: path has no identifier")

// Bump looks up the identifier embedded in path, advances its version
// according to the commit message, persists the result, and returns it.
//
// First observation of an identifier records 1.0 with no bump applied; every
// later observation strictly increases the version: "added"/"new" messages
// bump major (minor resets to 0), anything else bumps minor.
func (v *Versioner) Bump(ctx context.Context, path, commitMsg string) (Version, error) {
	id, ok := ExtractIdentifier(path)
	if !ok {
		return Version{}, fmt.Errorf("%w: %q", ErrNoIdentifier, path)
	}

	cur, exists, err := v.Store.Version(ctx, id)
	if err != nil {
		return Version{}, fmt.Errorf("registry: read version for %s: %w", id, err)
	}

	next := initialVersion
	if exists {
		next = NextVersion(cur, ClassifyCommit(commitMsg))
	}

	if err := v.Store.SetVersion(ctx, id, next); err != nil {
		return Version{}, fmt.Errorf("registry: persist version %s for %s: %w", next, id, err)
	}
	return next, nil
}
