// Package vcs queries the git CLI for the change detection and commit
// metadata the pipeline consumes. Git itself stays a black box; everything
// here shells out.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Meta is the most recent commit metadata for a single file.
type Meta struct {
	Hash    string // short hash
	Subject string // commit subject line
	Author  string // author display name
}

// Git runs git commands against one working directory.
type Git struct {
	dir string
}

// New returns a Git client for dir, verifying that the git binary exists and
// dir is inside a repository.
func New(ctx context.Context, dir string) (*Git, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("vcs: git binary not found: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("vcs: %q is not a git repository: %w", dir, err)
	}
	return &Git{dir: dir}, nil
}

// run executes a git command and returns trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("vcs: git %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ChangedDiagrams returns the added or modified .drawio paths between baseRef
// and headRef, in the order git reports them.
func (g *Git) ChangedDiagrams(ctx context.Context, baseRef, headRef string) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", "--diff-filter=AM",
		baseRef+".."+headRef, "--", "*.drawio")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// AllDiagrams returns every tracked .drawio path. Used for the initial run,
// when there is no prior commit to diff against.
func (g *Git) AllDiagrams(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "ls-files", "--", "*.drawio")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// FileMeta returns the most recent commit's short hash, subject, and author
// for a path. Fields come back tab-separated from a single git log call.
func (g *Git) FileMeta(ctx context.Context, path string) (Meta, error) {
	out, err := g.run(ctx, "log", "-1", "--format=%h%x09%s%x09%an", "--", path)
	if err != nil {
		return Meta{}, err
	}
	parts := strings.SplitN(out, "\t", 3)
	if len(parts) != 3 {
		return Meta{}, fmt.Errorf("vcs: no commit metadata for %q", path)
	}
	return Meta{Hash: parts[0], Subject: parts[1], Author: parts[2]}, nil
}

// HeadSHA returns the current HEAD commit SHA.
func (g *Git) HeadSHA(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "HEAD")
}

// StageRename registers an identifier-assignment rename so it lands in the
// CI commit: the removal of the old path and the addition of the new one.
func (g *Git) StageRename(ctx context.Context, oldPath, newPath string) error {
	if _, err := g.run(ctx, "add", "-A", "--", oldPath, newPath); err != nil {
		return err
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
