package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor pair tracked per identifier. Versions are
// monotonically increasing in lineage order under (major, minor)
// lexicographic comparison.
type Version struct {
	Major int
	Minor int
}

// String renders the version as "major.minor" with no leading zeros.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// ParseVersion parses a "major.minor" string.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("registry: malformed version %q", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil || ma < 0 {
		return Version{}, fmt.Errorf("registry: malformed major in %q", s)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil || mi < 0 {
		return Version{}, fmt.Errorf("registry: malformed minor in %q", s)
	}
	return Version{Major: ma, Minor: mi}, nil
}

// BumpKind classifies how a commit message advances a diagram's version.
type BumpKind int

const (
	// BumpMinor increments the minor component, major unchanged.
	BumpMinor BumpKind = iota
	// BumpMajor increments the major component and resets minor to zero.
	BumpMajor
)

// ClassifyCommit maps a commit message to a bump kind. Messages containing
// "added" or "new" anywhere, case-insensitive, are major bumps; everything
// else is a minor bump.
func ClassifyCommit(msg string) BumpKind {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "added") || strings.Contains(lower, "new") {
		return BumpMajor
	}
	return BumpMinor
}

// initialVersion is recorded on the first observation of an identifier,
// before any bump applies.
var initialVersion = Version{Major: 1, Minor: 0}

// NextVersion advances cur by kind.
func NextVersion(cur Version, kind BumpKind) Version {
	switch kind {
	case BumpMajor:
		return Version{Major: cur.Major + 1, Minor: 0}
	default:
		return Version{Major: cur.Major, Minor: cur.Minor + 1}
	}
}
