package registry

import (
	"context"
	"path/filepath"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.0", Version{1, 0}, false},
		{"12.34", Version{12, 34}, false},
		{" 2.1 ", Version{2, 1}, false},
		{"1", Version{}, true},
		{"a.b", Version{}, true},
		{"-1.0", Version{}, true},
		{"", Version{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifyCommit(t *testing.T) {
	tests := []struct {
		msg  string
		want BumpKind
	}{
		{"Added new flow", BumpMajor},
		{"ADDED diagram", BumpMajor},
		{"brand NEW layout", BumpMajor},
		{"renewed styling", BumpMajor}, // substring match, by contract
		{"Fixed typo", BumpMinor},
		{"Update colors", BumpMinor},
		{"", BumpMinor},
	}
	for _, tt := range tests {
		if got := ClassifyCommit(tt.msg); got != tt.want {
			t.Errorf("ClassifyCommit(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestVersioner_FirstObservationRecordsInitial(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".counter"), filepath.Join(dir, ".versions"))
	v := &Versioner{Store: store}
	ctx := context.Background()

	got, err := v.Bump(ctx, "diagram (004).drawio", "Added new flow")
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if got != (Version{1, 0}) {
		t.Errorf("first observation = %s, want 1.0", got)
	}
}

func TestVersioner_MinorAndMajorBumps(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".counter"), filepath.Join(dir, ".versions"))
	v := &Versioner{Store: store}
	ctx := context.Background()

	steps := []struct {
		msg  string
		want Version
	}{
		{"initial import", Version{1, 0}},
		{"Fixed typo", Version{1, 1}},
		{"tweak colors", Version{1, 2}},
		{"Added second flow", Version{2, 0}},
		{"polish", Version{2, 1}},
	}
	for i, s := range steps {
		got, err := v.Bump(ctx, "diagram (004).drawio", s.msg)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d (%q) = %s, want %s", i, s.msg, got, s.want)
		}
	}
}

func TestVersioner_StrictlyIncreasing(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".counter"), filepath.Join(dir, ".versions"))
	v := &Versioner{Store: store}
	ctx := context.Background()

	msgs := []string{"a", "Added x", "b", "c", "new y", "Added z", "d"}
	prev := Version{0, 0}
	for i, msg := range msgs {
		got, err := v.Bump(ctx, "70.drawio", msg)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !prev.Less(got) {
			t.Fatalf("step %d: version %s does not exceed %s", i, got, prev)
		}
		prev = got
	}
}

func TestVersioner_SeparateIdentifiers(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".counter"), filepath.Join(dir, ".versions"))
	v := &Versioner{Store: store}
	ctx := context.Background()

	if _, err := v.Bump(ctx, "a (001).drawio", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Bump(ctx, "a (001).drawio", "x"); err != nil {
		t.Fatal(err)
	}
	got, err := v.Bump(ctx, "b (002).drawio", "x")
	if err != nil {
		t.Fatal(err)
	}
	if got != (Version{1, 0}) {
		t.Errorf("identifier 002 = %s, want fresh 1.0", got)
	}
}

func TestVersioner_NoIdentifier(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".counter"), filepath.Join(dir, ".versions"))
	v := &Versioner{Store: store}

	if _, err := v.Bump(context.Background(), "plain.drawio", "x"); err == nil {
		t.Fatal("Bump accepted a path without identifier")
	}
}
