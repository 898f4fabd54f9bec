// Package logging configures the process-wide structured logger on log/slog.
// Output is text on stderr; an optional file sink mirrors it for CI log
// collection. Verbose runs lower the level to debug.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds a logger writing text records to w at the level implied by
// verbose.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup builds the logger on stderr (mirrored to filePath when non-empty),
// installs it as slog's default, and returns it with a closer for the file
// sink.
func Setup(verbose bool, filePath string) (*slog.Logger, func() error, error) {
	w := io.Writer(os.Stderr)
	closer := func() error { return nil }

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", filePath, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	logger := New(w, verbose)
	slog.SetDefault(logger)
	return logger, closer, nil
}
