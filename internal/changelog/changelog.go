// Package changelog maintains the append-only CSV audit trail of diagram
// processing events. One row is written per processing attempt, success or
// failure; rows are never mutated or deleted.
package changelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"
)

// Header is the fixed first line of every changelog file.
const Header = "Date,Time,Diagram,File,Action,Commit Message,Version,Commit Hash,Author Name"

// Actions recorded in the Action column.
const (
	ActionConverted    = "Converted"
	ActionConvertError = "Conversion failed"
)

// Entry is one immutable changelog row.
type Entry struct {
	Timestamp     time.Time
	Diagram       string // base name without extension
	File          string // repository-relative path
	Action        string
	CommitMessage string
	Version       string
	CommitHash    string
	Author        string
}

// formatRow renders the nine fields as a single CSV line. The four free-text
// fields (diagram, file, commit message, author) are always double-quoted to
// tolerate embedded commas; the remaining fields are bare.
func formatRow(e Entry) string {
	return fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s",
		e.Timestamp.Format("02.01.2006"),
		e.Timestamp.Format("15:04:05"),
		quote(e.Diagram),
		quote(e.File),
		e.Action,
		quote(e.CommitMessage),
		e.Version,
		e.CommitHash,
		quote(e.Author),
	)
}

// quote wraps s in double quotes, doubling any embedded quotes per RFC 4180.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Writer appends entries to a changelog file under an advisory lock.
type Writer struct {
	Path string
	Lock *Lock
}

// NewWriter returns a Writer for path with the default lock bounds.
func NewWriter(path string) *Writer {
	return &Writer{Path: path, Lock: DefaultLock(path)}
}

// Append writes one row, creating the file with its header if absent. The
// write is copy-modify-rename: the existing content plus the new row goes to
// a temp file which atomically replaces the changelog, so a reader never
// observes a torn row. Lock acquisition failures surface as errors; no entry
// is ever silently dropped.
func (w *Writer) Append(e Entry) error {
	if err := w.Lock.Acquire(); err != nil {
		return err
	}
	defer w.Lock.Release()

	existing, err := os.ReadFile(w.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("changelog: read %q: %w", w.Path, err)
	}

	var b strings.Builder
	if len(existing) == 0 {
		b.WriteString(Header + "\n")
	} else {
		b.Write(existing)
		if existing[len(existing)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	b.WriteString(formatRow(e) + "\n")

	tmp := w.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("changelog: write temp file: %w", err)
	}
	if err := os.Rename(tmp, w.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("changelog: replace %q: %w", w.Path, err)
	}
	return nil
}

// Read parses a changelog file and returns its rows (header excluded), each
// with exactly nine fields.
func Read(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("changelog: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 9
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("changelog: parse %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("changelog: %q is empty, expected header row", path)
	}
	return records[1:], nil
}
