package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// FileResult is the outcome of processing one diagram.
type FileResult struct {
	Path       string
	Identifier string
	Version    string
	Action     string
	Err        error
}

// Summary accumulates per-file results over one run.
type Summary struct {
	StartedAt time.Time
	EndedAt   time.Time
	Results   []FileResult
}

// NewSummary starts an empty summary stamped now.
func NewSummary() *Summary {
	return &Summary{StartedAt: time.Now()}
}

// Add appends one file's result.
func (s *Summary) Add(r FileResult) {
	s.Results = append(s.Results, r)
}

// Finish stamps the end time.
func (s *Summary) Finish() {
	s.EndedAt = time.Now()
}

// Processed is the number of diagrams the run attempted.
func (s *Summary) Processed() int { return len(s.Results) }

// Converted counts successful conversions.
func (s *Summary) Converted() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts diagrams whose processing hit an error.
func (s *Summary) Failed() int {
	return len(s.Results) - s.Converted()
}

// DurationMs is the run's wall-clock duration.
func (s *Summary) DurationMs() int64 {
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt).Milliseconds()
}

// Markdown renders the summary as a GitHub-flavored table for a CI step
// summary.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("## Diagram pipeline\n\n")
	fmt.Fprintf(&b, "%d processed, %d converted, %d failed\n\n",
		s.Processed(), s.Converted(), s.Failed())

	if len(s.Results) == 0 {
		b.WriteString("_No diagrams to process._\n")
		return b.String()
	}

	b.WriteString("| Diagram | ID | Version | Result |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, r := range s.Results {
		result := "converted"
		if r.Err != nil {
			result = "failed: " + r.Err.Error()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			r.Path, r.Identifier, r.Version, result)
	}
	return b.String()
}

// WriteStepSummary appends the markdown summary to path, the contract CI
// step-summary files expect.
func (s *Summary) WriteStepSummary(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("pipeline: open step summary %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(s.Markdown()); err != nil {
		return fmt.Errorf("pipeline: write step summary: %w", err)
	}
	return nil
}
