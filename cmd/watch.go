package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frostaag/diagrams-v2/internal/changelog"
	"github.com/frostaag/diagrams-v2/internal/config"
	"github.com/frostaag/diagrams-v2/internal/drawio"
	"github.com/frostaag/diagrams-v2/internal/logging"
	"github.com/frostaag/diagrams-v2/internal/pipeline"
	"github.com/frostaag/diagrams-v2/internal/telemetry"
	"github.com/frostaag/diagrams-v2/internal/ui"
	"github.com/frostaag/diagrams-v2/internal/vcs"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the diagrams directory and convert on save",
	Long: "Watch runs the conversion flow locally every time a .drawio file is\n" +
		"saved. Uploads and notifications are skipped; this is a preview loop.",
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closeLog, err := logging.Setup(cfg.Verbose, cfg.ResolvePath(cfg.LogPath))
	if err != nil {
		return err
	}
	defer closeLog()

	printer := ui.New()
	printer.Banner()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var emitter *telemetry.Emitter
	if cfg.TelemetryPath != "" {
		emitter, err = telemetry.NewEmitter(cfg.ResolvePath(cfg.TelemetryPath))
		if err != nil {
			return err
		}
		defer emitter.Close()
	}

	git, err := vcs.New(ctx, cfg.WorkDir)
	if err != nil {
		log.Warn("no git repository, using fallback metadata", "error", err)
		git = nil
	}

	p := &pipeline.Pipeline{
		Store: store,
		Renderer: &drawio.Converter{
			BinPath: cfg.Render.BinPath,
			Scale:   cfg.Render.Scale,
			Quality: cfg.Render.Quality,
			Verbose: cfg.Verbose,
		},
		Placeholder: drawio.WritePlaceholder,
		Changelog:   changelog.NewWriter(cfg.ResolvePath(cfg.ChangelogPath)),
		Printer:     printer,
		Emitter:     emitter,
		WorkDir:     cfg.WorkDir,
		OutputDir:   cfg.ResolvePath(cfg.OutputDir),
		RunID:       time.Now().UTC().Format("20060102T150405Z"),
	}
	if git != nil {
		p.Meta = git
	}

	watchDir := cfg.ResolvePath(cfg.DiagramsDir)
	w, err := pipeline.NewWatcher(watchDir)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	printer.Info(fmt.Sprintf("watching %s (ctrl-c to stop)", watchDir))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sig:
			printer.Info("stopping watch")
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if change.Kind == pipeline.ChangeRemoved {
				printer.Info(fmt.Sprintf("removed: %s", change.File))
				continue
			}
			sum, err := p.Run(ctx, []string{change.File})
			if err != nil {
				printer.Error(err.Error())
				continue
			}
			// An identifier rename is the pipeline's own write; suppress the
			// events it fires so the file is not processed twice.
			for _, r := range sum.Results {
				renamed := filepath.Join(filepath.Dir(change.File), filepath.Base(r.Path))
				if renamed != change.File {
					w.Ignore(renamed)
				}
			}
		}
	}
}
