package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("hidden detail")
	log.Info("run started", "files", 3)
	log.Warn("stage rename failed", "error", "exit status 1")

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Errorf("debug record emitted at info level:\n%s", out)
	}
	if !strings.Contains(out, "run started") || !strings.Contains(out, "files=3") {
		t.Errorf("info record missing:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("warn record missing level:\n%s", out)
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("renderer args", "bin", "drawio")

	if !strings.Contains(buf.String(), "renderer args") {
		t.Errorf("debug record missing in verbose mode:\n%s", buf.String())
	}
}

func TestSetup_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.log")

	log, closer, err := Setup(false, path)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Info("upload done", "name", "CHANGELOG.csv")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "upload done") {
		t.Errorf("file sink missing record:\n%s", data)
	}
}

func TestSetup_ErrorOnBadPath(t *testing.T) {
	if _, _, err := Setup(false, "/nonexistent/dir/pipeline.log"); err == nil {
		t.Fatal("expected error for bad log path, got nil")
	}
}
