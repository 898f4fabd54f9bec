package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// FileStore persists registry state in the two flat files the CI workflow
// shares between runs: a counter file holding a single zero-padded integer,
// and a versions file with one "identifier:major.minor" line per identifier.
//
// Writes go through a temp file plus atomic rename. There is no locking here;
// the pipeline relies on CI-level run serialization, and the SQLiteStore
// backend exists for setups that cannot.
type FileStore struct {
	CounterPath  string
	VersionsPath string
}

// NewFileStore returns a FileStore over the given counter and versions paths.
// Neither file needs to exist yet.
func NewFileStore(counterPath, versionsPath string) *FileStore {
	return &FileStore{CounterPath: counterPath, VersionsPath: versionsPath}
}

func (s *FileStore) Counter(_ context.Context) (int, error) {
	data, err := os.ReadFile(s.CounterPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry: read counter file: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("registry: counter file %q holds %q, want a non-negative integer", s.CounterPath, raw)
	}
	return n, nil
}

func (s *FileStore) SetCounter(_ context.Context, n int) error {
	return atomicWrite(s.CounterPath, []byte(FormatIdentifier(n)+"\n"))
}

func (s *FileStore) Version(_ context.Context, id string) (Version, bool, error) {
	versions, err := s.readVersions()
	if err != nil {
		return Version{}, false, err
	}
	v, ok := versions[id]
	return v, ok, nil
}

func (s *FileStore) SetVersion(_ context.Context, id string, v Version) error {
	versions, err := s.readVersions()
	if err != nil {
		return err
	}
	versions[id] = v

	ids := make([]string, 0, len(versions))
	for k := range versions {
		ids = append(ids, k)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, k := range ids {
		fmt.Fprintf(&b, "%s:%s\n", k, versions[k])
	}
	return atomicWrite(s.VersionsPath, []byte(b.String()))
}

func (s *FileStore) Close() error { return nil }

// readVersions parses the versions file into a map. Malformed lines are an
// error rather than silently dropped: losing a version entry would reset a
// diagram's lineage.
func (s *FileStore) readVersions() (map[string]Version, error) {
	versions := make(map[string]Version)

	data, err := os.ReadFile(s.VersionsPath)
	if os.IsNotExist(err) {
		return versions, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read versions file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, raw, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("registry: versions file %q: malformed line %q", s.VersionsPath, line)
		}
		v, err := ParseVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("registry: versions file %q: %w", s.VersionsPath, err)
		}
		versions[strings.TrimSpace(id)] = v
	}
	return versions, nil
}

// atomicWrite writes data to path via a temp file and rename so readers never
// observe a partial write.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("registry: replace %q: %w", path, err)
	}
	return nil
}
