// Package pipeline orchestrates the diagram conversion flow: identifier
// assignment, PNG export, version bumping, and changelog appends. Each file is
// processed independently; one broken diagram never blocks the rest of a run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frostaag/diagrams-v2/internal/changelog"
	"github.com/frostaag/diagrams-v2/internal/registry"
	"github.com/frostaag/diagrams-v2/internal/telemetry"
	"github.com/frostaag/diagrams-v2/internal/ui"
	"github.com/frostaag/diagrams-v2/internal/vcs"
)

// Renderer exports one diagram to PNG. The drawio converter satisfies it;
// tests substitute fakes.
type Renderer interface {
	Convert(ctx context.Context, inPath, outPath string) error
}

// PlaceholderFunc writes a stand-in PNG for a failed export.
type PlaceholderFunc func(path, diagramName, errMsg string) error

// MetaSource supplies commit metadata and staging for renames. *vcs.Git
// satisfies it.
type MetaSource interface {
	FileMeta(ctx context.Context, path string) (vcs.Meta, error)
	StageRename(ctx context.Context, oldPath, newPath string) error
}

// Fallback commit metadata when git history is unavailable for a file.
const (
	unknownAuthor  = "Unknown"
	defaultSubject = "Updated diagram"
)

// Pipeline processes diagram files end to end.
type Pipeline struct {
	Store       registry.Store
	Meta        MetaSource
	Renderer    Renderer
	Placeholder PlaceholderFunc
	Changelog   *changelog.Writer
	Printer     *ui.Printer
	Emitter     *telemetry.Emitter

	// WorkDir anchors repository-relative file paths. Discovery and git
	// speak repository-relative; filesystem operations need the anchor
	// when the process runs outside the repository root.
	WorkDir   string
	OutputDir string
	RunID     string
}

// fsPath maps a repository-relative path to one usable from the process's
// working directory.
func (p *Pipeline) fsPath(path string) string {
	if p.WorkDir == "" || p.WorkDir == "." || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.WorkDir, path)
}

// repoPath is the inverse of fsPath: it strips the WorkDir anchor so git and
// the changelog record repository-relative paths.
func (p *Pipeline) repoPath(fsPath string) string {
	if p.WorkDir == "" || p.WorkDir == "." {
		return fsPath
	}
	rel, err := filepath.Rel(p.WorkDir, fsPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fsPath
	}
	return rel
}

// DiscoverFiles decides which diagrams a run covers, as repository-relative
// paths. A specific file wins outright; initial scans everything git tracks;
// otherwise the base..head diff drives the list.
func DiscoverFiles(ctx context.Context, g *vcs.Git, specific string, initial bool, baseRef, headRef string) ([]string, error) {
	if specific != "" {
		if !strings.HasSuffix(specific, ".drawio") {
			return nil, fmt.Errorf("pipeline: %q is not a .drawio file", specific)
		}
		return []string{specific}, nil
	}
	if initial {
		return g.AllDiagrams(ctx)
	}
	return g.ChangedDiagrams(ctx, baseRef, headRef)
}

// Run processes files sequentially and returns the accumulated summary.
// Per-file errors land in the summary, not the returned error; only setup
// failures (output directory creation) abort the run.
func (p *Pipeline) Run(ctx context.Context, files []string) (*Summary, error) {
	sum := NewSummary()
	defer sum.Finish()

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return sum, fmt.Errorf("pipeline: create output dir: %w", err)
	}

	p.Emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindRunStart,
		RunID: p.RunID,
		Data:  map[string]int{"files": len(files)},
	})
	if p.Printer != nil {
		p.Printer.RunStart(len(files))
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Add(p.processFile(ctx, file))
	}

	sum.Finish()
	p.Emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindRunDone,
		RunID: p.RunID,
		Data: map[string]int{
			"processed": sum.Processed(),
			"converted": sum.Converted(),
			"failed":    sum.Failed(),
		},
	})
	if p.Printer != nil {
		p.Printer.RunSummary(ui.RunSummaryData{
			Processed:  sum.Processed(),
			Converted:  sum.Converted(),
			Failed:     sum.Failed(),
			DurationMs: sum.DurationMs(),
		})
	}
	return sum, nil
}

// processFile takes one diagram through the whole flow. The incoming path is
// repository-relative; git and the changelog keep it that way while disk
// operations go through fsPath. Failures in any stage after identifier
// assignment still produce a changelog entry so the record stays complete.
func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	if p.Printer != nil {
		p.Printer.FileStart(path)
	}

	meta := p.fileMeta(ctx, path)

	assigner := &registry.Assigner{Store: p.Store}
	newFsPath, id, renamed, err := assigner.Assign(ctx, p.fsPath(path))
	if err != nil {
		if p.Printer != nil {
			p.Printer.Error(fmt.Sprintf("%s: %v", path, err))
		}
		return FileResult{Path: path, Err: fmt.Errorf("assign identifier: %w", err)}
	}
	if renamed {
		newPath := p.repoPath(newFsPath)
		if p.Meta != nil {
			if err := p.Meta.StageRename(ctx, path, newPath); err != nil && p.Printer != nil {
				p.Printer.Warn(fmt.Sprintf("stage rename: %v", err))
			}
		}
		p.Emitter.Emit(telemetry.Event{
			Kind:  telemetry.KindIdentifierAssigned,
			RunID: p.RunID,
			File:  newPath,
			Data:  map[string]string{"id": id, "from": path},
		})
		if p.Printer != nil {
			p.Printer.IdentifierAssigned(path, newPath, id)
		}
		path = newPath
	} else {
		path = p.repoPath(newFsPath)
	}

	diagramName := strings.TrimSuffix(filepath.Base(path), ".drawio")
	outPath := filepath.Join(p.OutputDir, diagramName+".png")

	action := changelog.ActionConverted
	renderStart := time.Now()
	var convErr error
	if convErr = p.Renderer.Convert(ctx, newFsPath, outPath); convErr != nil {
		action = changelog.ActionConvertError
		p.Emitter.Emit(telemetry.Event{
			Kind:  telemetry.KindRenderFailed,
			RunID: p.RunID,
			File:  path,
			Data:  map[string]string{"error": convErr.Error()},
		})
		if p.Printer != nil {
			p.Printer.ConversionFailed(path, convErr)
		}
		if p.Placeholder != nil {
			if err := p.Placeholder(outPath, diagramName, convErr.Error()); err != nil && p.Printer != nil {
				p.Printer.Warn(fmt.Sprintf("write placeholder: %v", err))
			}
		}
	} else {
		p.Emitter.Emit(telemetry.Event{
			Kind:  telemetry.KindRenderDone,
			RunID: p.RunID,
			File:  path,
		})
		if p.Printer != nil {
			p.Printer.Converted(outPath, time.Since(renderStart).Milliseconds())
		}
	}

	versioner := &registry.Versioner{Store: p.Store}
	version, err := versioner.Bump(ctx, path, meta.Subject)
	if err != nil {
		return FileResult{Path: path, Identifier: id, Action: action,
			Err: fmt.Errorf("bump version: %w", err)}
	}
	p.Emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindVersionBumped,
		RunID: p.RunID,
		File:  path,
		Data:  map[string]string{"version": version.String()},
	})
	if p.Printer != nil {
		p.Printer.VersionBumped(id, version.String())
	}

	entry := changelog.Entry{
		Timestamp:     time.Now(),
		Diagram:       diagramName,
		File:          path,
		Action:        action,
		CommitMessage: meta.Subject,
		Version:       version.String(),
		CommitHash:    meta.Hash,
		Author:        meta.Author,
	}
	if err := p.Changelog.Append(entry); err != nil {
		return FileResult{Path: path, Identifier: id, Version: version.String(),
			Action: action, Err: fmt.Errorf("append changelog: %w", err)}
	}
	p.Emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindChangelogAppended,
		RunID: p.RunID,
		File:  path,
	})

	return FileResult{
		Path:       path,
		Identifier: id,
		Version:    version.String(),
		Action:     action,
		Err:        convErr,
	}
}

// fileMeta looks up commit metadata, falling back to placeholders when the
// file has no history yet.
func (p *Pipeline) fileMeta(ctx context.Context, path string) vcs.Meta {
	if p.Meta == nil {
		return vcs.Meta{Subject: defaultSubject, Author: unknownAuthor}
	}
	meta, err := p.Meta.FileMeta(ctx, path)
	if err != nil || meta.Subject == "" {
		if p.Printer != nil && err != nil {
			p.Printer.Warn(fmt.Sprintf("no commit metadata for %s: %v", path, err))
		}
		return vcs.Meta{Subject: defaultSubject, Author: unknownAuthor, Hash: meta.Hash}
	}
	return meta
}
