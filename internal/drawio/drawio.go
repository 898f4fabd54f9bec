// Package drawio invokes the Draw.io desktop binary to export diagrams as
// PNG images. The binary is a black box: this package builds its CLI
// arguments, runs it, and sanity-checks the output.
package drawio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// minOutputSize is the smallest byte count accepted as a valid export. The
// binary sometimes exits zero after writing an empty or near-empty file.
const minOutputSize = 100

// Converter exports diagram files to PNG via the drawio CLI.
type Converter struct {
	BinPath string
	Scale   float64
	Quality int
	Verbose bool
}

// buildArgs constructs the CLI arguments for one export.
func (c *Converter) buildArgs(inPath, outPath string) []string {
	return []string{
		"-x",
		"-f", "png",
		"-s", strconv.FormatFloat(c.Scale, 'f', -1, 64),
		"-q", strconv.Itoa(c.Quality),
		"-o", outPath,
		inPath,
	}
}

// Convert renders inPath to a PNG at outPath. A zero exit with a missing or
// trivially small output file is still a failure.
func (c *Converter) Convert(ctx context.Context, inPath, outPath string) error {
	args := c.buildArgs(inPath, outPath)

	cmd := exec.CommandContext(ctx, c.BinPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if c.Verbose {
		fmt.Fprintf(os.Stderr, "[drawio] running: %s %s\n", c.BinPath, strings.Join(args, " "))
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("drawio: export failed: %w\nstderr: %s", err, stderr.String())
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("drawio: export produced no output at %q: %w", outPath, err)
	}
	if info.Size() < minOutputSize {
		return fmt.Errorf("drawio: export output %q is %d bytes, below minimum %d",
			outPath, info.Size(), minOutputSize)
	}
	return nil
}

// Validate checks that the drawio binary is available.
func (c *Converter) Validate() error {
	cmd := exec.Command(c.BinPath, "--version")
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("drawio: binary not found at %q: %w", c.BinPath, err)
	}
	if c.Verbose {
		fmt.Fprintf(os.Stderr, "[drawio] version: %s", string(out))
	}
	return nil
}
