package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frostaag/diagrams-v2/internal/changelog"
	"github.com/frostaag/diagrams-v2/internal/registry"
	"github.com/frostaag/diagrams-v2/internal/vcs"
)

// memStore is an in-memory registry backend for tests.
type memStore struct {
	counter  int
	versions map[string]registry.Version
}

func newMemStore() *memStore {
	return &memStore{versions: make(map[string]registry.Version)}
}

func (m *memStore) Counter(context.Context) (int, error) { return m.counter, nil }
func (m *memStore) SetCounter(_ context.Context, n int) error {
	m.counter = n
	return nil
}
func (m *memStore) Version(_ context.Context, id string) (registry.Version, bool, error) {
	v, ok := m.versions[id]
	return v, ok, nil
}
func (m *memStore) SetVersion(_ context.Context, id string, v registry.Version) error {
	m.versions[id] = v
	return nil
}
func (m *memStore) Close() error { return nil }

// fakeRenderer writes a marker PNG, or fails for paths listed in failFor.
type fakeRenderer struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeRenderer) Convert(_ context.Context, inPath, outPath string) error {
	f.calls++
	if f.failFor[filepath.Base(inPath)] {
		return errors.New("export blew up")
	}
	return os.WriteFile(outPath, []byte("png-bytes"), 0o644)
}

// fakeMeta serves fixed commit metadata.
type fakeMeta struct {
	subject string
	renames [][2]string
}

func (f *fakeMeta) FileMeta(context.Context, string) (vcs.Meta, error) {
	return vcs.Meta{Hash: "abc1234", Subject: f.subject, Author: "Test Author"}, nil
}

func (f *fakeMeta) StageRename(_ context.Context, oldPath, newPath string) error {
	f.renames = append(f.renames, [2]string{oldPath, newPath})
	return nil
}

func newTestPipeline(t *testing.T, dir string, r Renderer, meta MetaSource) (*Pipeline, *memStore) {
	t.Helper()
	store := newMemStore()
	return &Pipeline{
		Store:     store,
		Meta:      meta,
		Renderer:  r,
		Changelog: changelog.NewWriter(filepath.Join(dir, "CHANGELOG.csv")),
		OutputDir: filepath.Join(dir, "png"),
		RunID:     "test-run",
	}, store
}

func writeDiagram(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("<mxfile/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_ProcessesNewDiagram(t *testing.T) {
	dir := t.TempDir()
	path := writeDiagram(t, dir, "flow.drawio")

	meta := &fakeMeta{subject: "Added flow diagram"}
	p, store := newTestPipeline(t, dir, &fakeRenderer{}, meta)

	sum, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Processed() != 1 || sum.Converted() != 1 || sum.Failed() != 0 {
		t.Fatalf("summary = %d/%d/%d", sum.Processed(), sum.Converted(), sum.Failed())
	}

	r := sum.Results[0]
	if r.Identifier != "001" {
		t.Errorf("identifier = %q", r.Identifier)
	}
	if r.Version != "1.0" {
		t.Errorf("version = %q, want 1.0 for first observation", r.Version)
	}
	if !strings.HasSuffix(r.Path, "flow (001).drawio") {
		t.Errorf("path = %q, want identifier embedded", r.Path)
	}

	// File was renamed on disk and the rename staged.
	if _, err := os.Stat(filepath.Join(dir, "flow (001).drawio")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if len(meta.renames) != 1 {
		t.Errorf("staged renames = %v", meta.renames)
	}
	if store.counter != 1 {
		t.Errorf("counter = %d", store.counter)
	}

	// PNG landed in the output dir.
	if _, err := os.Stat(filepath.Join(dir, "png", "flow (001).png")); err != nil {
		t.Errorf("output PNG missing: %v", err)
	}

	// Changelog has one converted row.
	rows, err := changelog.Read(filepath.Join(dir, "CHANGELOG.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("changelog rows = %d", len(rows))
	}
	if rows[0][4] != changelog.ActionConverted {
		t.Errorf("action = %q", rows[0][4])
	}
	if rows[0][6] != "1.0" {
		t.Errorf("version column = %q", rows[0][6])
	}
}

func TestRun_ExistingIdentifierBumpsVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeDiagram(t, dir, "net (007).drawio")

	p, store := newTestPipeline(t, dir, &fakeRenderer{}, &fakeMeta{subject: "Fix arrows"})
	store.versions["007"] = registry.Version{Major: 1, Minor: 0}
	store.counter = 7

	sum, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}

	r := sum.Results[0]
	if r.Identifier != "007" {
		t.Errorf("identifier = %q", r.Identifier)
	}
	if r.Version != "1.1" {
		t.Errorf("version = %q, want minor bump", r.Version)
	}
	if store.counter != 7 {
		t.Errorf("counter mutated to %d for an already-identified file", store.counter)
	}
}

func TestRun_MajorBumpOnAddedCommit(t *testing.T) {
	dir := t.TempDir()
	path := writeDiagram(t, dir, "net (007).drawio")

	p, store := newTestPipeline(t, dir, &fakeRenderer{}, &fakeMeta{subject: "Added subnet detail"})
	store.versions["007"] = registry.Version{Major: 1, Minor: 3}

	sum, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if v := sum.Results[0].Version; v != "2.0" {
		t.Errorf("version = %q, want major bump", v)
	}
}

func TestRun_ConversionFailureWritesPlaceholderAndRow(t *testing.T) {
	dir := t.TempDir()
	path := writeDiagram(t, dir, "broken.drawio")

	r := &fakeRenderer{failFor: map[string]bool{"broken (001).drawio": true}}
	p, _ := newTestPipeline(t, dir, r, &fakeMeta{subject: "Update broken"})

	var placeholderPath string
	p.Placeholder = func(path, name, msg string) error {
		placeholderPath = path
		return os.WriteFile(path, []byte("placeholder"), 0o644)
	}

	sum, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}

	if sum.Failed() != 1 {
		t.Fatalf("failed = %d, want 1", sum.Failed())
	}
	if placeholderPath == "" {
		t.Error("placeholder was not written")
	}

	rows, err := changelog.Read(filepath.Join(dir, "CHANGELOG.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][4] != changelog.ActionConvertError {
		t.Errorf("rows = %v, want one failure row", rows)
	}
	// The failed attempt still records a version.
	if rows[0][6] != "1.0" {
		t.Errorf("version column = %q", rows[0][6])
	}
}

func TestRun_OneBadFileDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	a := writeDiagram(t, dir, "a.drawio")
	b := writeDiagram(t, dir, "b.drawio")

	r := &fakeRenderer{failFor: map[string]bool{"a (001).drawio": true}}
	p, _ := newTestPipeline(t, dir, r, &fakeMeta{subject: "Update"})

	sum, err := p.Run(context.Background(), []string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed() != 2 || sum.Converted() != 1 || sum.Failed() != 1 {
		t.Errorf("summary = %d/%d/%d", sum.Processed(), sum.Converted(), sum.Failed())
	}
}

func TestRun_WorkDirAnchorsRelativePaths(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	if err := os.MkdirAll(filepath.Join(repo, "diagrams"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeDiagram(t, filepath.Join(repo, "diagrams"), "flow.drawio")

	meta := &fakeMeta{subject: "Update flow"}
	p, _ := newTestPipeline(t, root, &fakeRenderer{}, meta)
	p.WorkDir = repo

	// Discovery hands the pipeline repository-relative paths.
	sum, err := p.Run(context.Background(), []string{"diagrams/flow.drawio"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Converted() != 1 {
		t.Fatalf("summary = %d/%d/%d", sum.Processed(), sum.Converted(), sum.Failed())
	}

	// The rename happened under the work dir, not the process cwd.
	if _, err := os.Stat(filepath.Join(repo, "diagrams", "flow (001).drawio")); err != nil {
		t.Errorf("renamed file missing under work dir: %v", err)
	}

	// Git and the changelog see repository-relative paths.
	if r := sum.Results[0]; r.Path != filepath.Join("diagrams", "flow (001).drawio") {
		t.Errorf("result path = %q, want repository-relative", r.Path)
	}
	if len(meta.renames) != 1 || meta.renames[0][1] != filepath.Join("diagrams", "flow (001).drawio") {
		t.Errorf("staged rename = %v, want repository-relative paths", meta.renames)
	}
	rows, err := changelog.Read(filepath.Join(root, "CHANGELOG.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][3] != filepath.Join("diagrams", "flow (001).drawio") {
		t.Errorf("changelog file column = %q, want repository-relative", rows[0][3])
	}
}

func TestRun_NilMetaUsesFallbacks(t *testing.T) {
	dir := t.TempDir()
	path := writeDiagram(t, dir, "solo.drawio")

	p, _ := newTestPipeline(t, dir, &fakeRenderer{}, nil)

	if _, err := p.Run(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	rows, err := changelog.Read(filepath.Join(dir, "CHANGELOG.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][8] != unknownAuthor {
		t.Errorf("author = %q, want fallback", rows[0][8])
	}
	if rows[0][5] != defaultSubject {
		t.Errorf("commit message = %q, want fallback", rows[0][5])
	}
}

func TestSummaryMarkdown(t *testing.T) {
	sum := NewSummary()
	sum.Add(FileResult{Path: "a (001).drawio", Identifier: "001", Version: "1.0"})
	sum.Add(FileResult{Path: "b (002).drawio", Identifier: "002", Version: "2.1", Err: errors.New("boom")})
	sum.Finish()

	md := sum.Markdown()
	if !strings.Contains(md, "2 processed, 1 converted, 1 failed") {
		t.Errorf("markdown header wrong:\n%s", md)
	}
	if !strings.Contains(md, "| a (001).drawio | 001 | 1.0 | converted |") {
		t.Errorf("markdown missing success row:\n%s", md)
	}
	if !strings.Contains(md, "failed: boom") {
		t.Errorf("markdown missing failure row:\n%s", md)
	}
}

func TestWriteStepSummary_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	if err := os.WriteFile(path, []byte("existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum := NewSummary()
	sum.Finish()
	if err := sum.WriteStepSummary(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "existing\n") {
		t.Error("step summary overwrote prior content")
	}
	if !strings.Contains(string(data), "## Diagram pipeline") {
		t.Error("step summary missing report")
	}
}

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.state.toml")

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState (fresh): %v", err)
	}
	if s.Version != 1 || s.TotalRuns != 0 {
		t.Fatalf("fresh state = %+v", s)
	}

	sum := NewSummary()
	sum.Add(FileResult{Path: "a.drawio"})
	sum.Finish()
	s.RecordRun(sum, "deadbeef")

	if err := SaveState(path, s); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.TotalRuns != 1 || loaded.LastCommit != "deadbeef" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.TotalConverted != 1 {
		t.Errorf("TotalConverted = %d", loaded.TotalConverted)
	}
}
