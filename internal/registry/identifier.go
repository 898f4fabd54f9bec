package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// idSuffixPattern matches a base name ending in " (NNN)" with at least three
// digits. Anchoring at the end avoids false positives from numbers elsewhere
// in a name ("v2 overview (003)" matches on 003, not 2).
var idSuffixPattern = regexp.MustCompile(`^.* \((\d{3,})\)$`)

// numericPattern matches base names that are purely decimal digits. These
// predate the identifier scheme; the digits themselves are the identifier.
var numericPattern = regexp.MustCompile(`^\d+$`)

// ExtractIdentifier returns the identifier embedded in a diagram file path,
// or ok=false when the file has none yet.
func ExtractIdentifier(path string) (id string, ok bool) {
	base := baseName(path)
	if m := idSuffixPattern.FindStringSubmatch(base); m != nil {
		return m[1], true
	}
	if numericPattern.MatchString(base) {
		return base, true
	}
	return "", false
}

// baseName strips the directory and extension from a path.
func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

// Assigner hands out permanent identifiers to diagrams that lack one.
type Assigner struct {
	Store Store
}

// Assign returns the path the diagram should be processed under, renaming the
// file to embed a fresh identifier when needed. Files that already carry an
// identifier (suffix or legacy numeric name) pass through untouched with no
// counter mutation.
//
// The counter is persisted only after a successful rename, so a rename
// failure never burns an identifier.
func (a *Assigner) Assign(ctx context.Context, path string) (newPath, id string, renamed bool, err error) {
	if id, ok := ExtractIdentifier(path); ok {
		return path, id, false, nil
	}

	last, err := a.Store.Counter(ctx)
	if err != nil {
		return "", "", false, fmt.Errorf("registry: read counter: %w", err)
	}
	next := last + 1
	id = FormatIdentifier(next)

	ext := filepath.Ext(path)
	base := baseName(path)
	newPath = filepath.Join(filepath.Dir(path), fmt.Sprintf("%s (%s)%s", base, id, ext))

	if err := os.Rename(path, newPath); err != nil {
		return "", "", false, fmt.Errorf("registry: rename %q: %w", path, err)
	}
	if err := a.Store.SetCounter(ctx, next); err != nil {
		return "", "", false, fmt.Errorf("registry: persist counter %d: %w", next, err)
	}
	return newPath, id, true, nil
}

// FormatIdentifier renders a counter value as an identifier: zero-padded to
// three digits, growing naturally past 999.
func FormatIdentifier(n int) string {
	return fmt.Sprintf("%03d", n)
}
