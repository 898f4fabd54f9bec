package ui

import (
	"fmt"
	"os"
)

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	yellow = "\033[33m"
	green  = "\033[32m"
	red    = "\033[31m"
	cyan   = "\033[36m"
)

type Printer struct{}

func New() *Printer {
	return &Printer{}
}

func (p *Printer) Banner() {
	fmt.Fprintln(os.Stderr, bold+cyan+"  ╔═════════════════════════════════╗"+reset)
	fmt.Fprintln(os.Stderr, bold+cyan+"  ║"+reset+bold+"   DIAGRAMS  "+dim+"conversion pipeline"+reset+bold+cyan+"  ║"+reset)
	fmt.Fprintln(os.Stderr, bold+cyan+"  ╚═════════════════════════════════╝"+reset)
	fmt.Fprintln(os.Stderr)
}

func (p *Printer) RunStart(count int) {
	fmt.Fprintf(os.Stderr, bold+cyan+"── processing %d diagram(s) ──"+reset+"\n", count)
}

func (p *Printer) FileStart(path string) {
	fmt.Fprintf(os.Stderr, cyan+"◆ "+reset+"%s\n", path)
}

func (p *Printer) IdentifierAssigned(oldPath, newPath, id string) {
	fmt.Fprintf(os.Stderr, "  "+yellow+"↳ assigned %s"+reset+dim+" (%s → %s)"+reset+"\n", id, oldPath, newPath)
}

func (p *Printer) Converted(outPath string, durationMs int64) {
	secs := float64(durationMs) / 1000.0
	fmt.Fprintf(os.Stderr, "  "+green+"✓ converted"+reset+dim+" %s (%.1fs)"+reset+"\n", outPath, secs)
}

func (p *Printer) ConversionFailed(path string, err error) {
	fmt.Fprintf(os.Stderr, "  "+red+"✗ conversion failed"+reset+" %s — %v\n", path, err)
}

func (p *Printer) VersionBumped(id, version string) {
	fmt.Fprintf(os.Stderr, "  "+dim+"version %s → %s"+reset+"\n", id, version)
}

func (p *Printer) Uploaded(name string) {
	fmt.Fprintf(os.Stderr, green+"✓ uploaded"+reset+" %s\n", name)
}

func (p *Printer) UploadFailed(name string, err error) {
	fmt.Fprintf(os.Stderr, red+"✗ upload failed"+reset+" %s — %v\n", name, err)
}

func (p *Printer) NotifySent() {
	fmt.Fprintln(os.Stderr, green+"✓ notification sent"+reset)
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(os.Stderr, red+bold+"error: "+reset+"%s\n", msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(os.Stderr, yellow+"warning: "+reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(os.Stderr, dim+"%s"+reset+"\n", msg)
}

// RunSummaryData holds the counters printed after a run.
type RunSummaryData struct {
	Processed  int
	Converted  int
	Failed     int
	Skipped    int
	DurationMs int64
}

// RunSummary prints a structured summary after a pipeline run.
func (p *Printer) RunSummary(d RunSummaryData) {
	secs := float64(d.DurationMs) / 1000.0

	fmt.Fprintln(os.Stderr, "\n"+dim+"┌─ "+reset+bold+"run summary"+reset+dim+" ─────────────────────────"+reset)
	fmt.Fprintf(os.Stderr, dim+"│"+reset+"  processed: %d, converted: "+green+"%d"+reset+", failed: "+red+"%d"+reset+", skipped: %d\n",
		d.Processed, d.Converted, d.Failed, d.Skipped)
	fmt.Fprintf(os.Stderr, dim+"│"+reset+"  duration: %.1fs\n", secs)
	fmt.Fprintln(os.Stderr, dim+"└──────────────────────────────────────────"+reset)
}
