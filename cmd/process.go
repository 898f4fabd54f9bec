package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frostaag/diagrams-v2/internal/changelog"
	"github.com/frostaag/diagrams-v2/internal/config"
	"github.com/frostaag/diagrams-v2/internal/drawio"
	"github.com/frostaag/diagrams-v2/internal/logging"
	"github.com/frostaag/diagrams-v2/internal/pipeline"
	"github.com/frostaag/diagrams-v2/internal/registry"
	"github.com/frostaag/diagrams-v2/internal/sharepoint"
	"github.com/frostaag/diagrams-v2/internal/teams"
	"github.com/frostaag/diagrams-v2/internal/telemetry"
	"github.com/frostaag/diagrams-v2/internal/ui"
	"github.com/frostaag/diagrams-v2/internal/vcs"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert changed diagrams and update the changelog",
	Long: "Process discovers changed .drawio files, assigns identifiers, exports\n" +
		"PNGs, bumps versions, appends changelog rows, and publishes the result.",
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("file", "", "process a single diagram (path relative to work_dir)")
	processCmd.Flags().Bool("initial", false, "process every tracked diagram, not just changed ones")
	processCmd.Flags().String("base", "HEAD~1", "base ref for change detection")
	processCmd.Flags().String("head", "HEAD", "head ref for change detection")
	processCmd.Flags().Bool("skip-upload", false, "do not upload the changelog to SharePoint")
	processCmd.Flags().Bool("skip-notify", false, "do not send a Teams notification")
	processCmd.Flags().String("details-url", "", "link back to the CI run in notifications")
	viper.BindPFlag("specific_file", processCmd.Flags().Lookup("file"))

	rootCmd.AddCommand(processCmd)
}

// buildStore selects the registry backend from config.
func buildStore(ctx context.Context, cfg config.Config) (registry.Store, error) {
	if cfg.RegistryBackend == "sqlite" {
		return registry.NewSQLiteStore(ctx, cfg.ResolvePath(cfg.RegistryDBPath))
	}
	return registry.NewFileStore(cfg.ResolvePath(cfg.CounterPath), cfg.ResolvePath(cfg.VersionsPath)), nil
}

// runError maps a run summary to the command's exit outcome. Individual
// conversion failures are recorded, not fatal; the run fails only when every
// file failed.
func runError(sum *pipeline.Summary) error {
	if sum.Processed() > 0 && sum.Converted() == 0 {
		return fmt.Errorf("all %d diagram(s) failed to convert", sum.Failed())
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	initial, _ := cmd.Flags().GetBool("initial")
	baseRef, _ := cmd.Flags().GetString("base")
	headRef, _ := cmd.Flags().GetString("head")
	skipUpload, _ := cmd.Flags().GetBool("skip-upload")
	skipNotify, _ := cmd.Flags().GetBool("skip-notify")
	detailsURL, _ := cmd.Flags().GetString("details-url")

	log, closeLog, err := logging.Setup(cfg.Verbose, cfg.ResolvePath(cfg.LogPath))
	if err != nil {
		return err
	}
	defer closeLog()

	printer := ui.New()
	if cfg.Verbose {
		printer.Banner()
	}

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
		if cfg.SpecificFile == "" {
			return fmt.Errorf("change detection needs a git repository: %w", err)
		}
		log.Warn("no git repository, using fallback metadata", "error", err)
		git = nil
	}

	statePath := cfg.ResolvePath(cfg.StatePath)

	// An explicit --base wins; otherwise the last commit the pipeline saw is
	// a better diff anchor than HEAD~1, which misses multi-commit pushes.
	if !cmd.Flags().Changed("base") {
		if state, err := pipeline.LoadState(statePath); err == nil && state.LastCommit != "" {
			baseRef = state.LastCommit
		}
	}

	files, err := pipeline.DiscoverFiles(ctx, git, cfg.SpecificFile, initial, baseRef, headRef)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		printer.Info("no diagrams to process")
		return nil
	}
	log.Info("run starting", "files", len(files), "base", baseRef, "head", headRef)

	conv := &drawio.Converter{
		BinPath: cfg.Render.BinPath,
		Scale:   cfg.Render.Scale,
		Quality: cfg.Render.Quality,
		Verbose: cfg.Verbose,
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	p := &pipeline.Pipeline{
		Store:       store,
		Renderer:    conv,
		Placeholder: drawio.WritePlaceholder,
		Changelog:   changelog.NewWriter(cfg.ResolvePath(cfg.ChangelogPath)),
		Printer:     printer,
		Emitter:     emitter,
		WorkDir:     cfg.WorkDir,
		OutputDir:   cfg.ResolvePath(cfg.OutputDir),
		RunID:       runID,
	}
	if git != nil {
		p.Meta = git
	}

	sum, err := p.Run(ctx, files)
	if err != nil {
		return err
	}

	if err := saveRunState(ctx, statePath, git, sum); err != nil {
		log.Warn("saving run state", "error", err)
	}
	if err := sum.WriteStepSummary(cfg.ResolvePath(cfg.SummaryPath)); err != nil {
		log.Warn("writing step summary", "error", err)
	}

	if !skipUpload {
		if err := uploadChangelog(ctx, cfg, printer, emitter, runID); err != nil {
			return err
		}
	}

	if !skipNotify {
		notifyRun(ctx, cfg, log, printer, emitter, runID, sum.Converted(), sum.Failed(), detailsURL)
	}

	return runError(sum)
}

// saveRunState folds the run outcome into the on-disk pipeline state.
func saveRunState(ctx context.Context, statePath string, git *vcs.Git, sum *pipeline.Summary) error {
	state, err := pipeline.LoadState(statePath)
	if err != nil {
		return err
	}
	head := ""
	if git != nil {
		if sha, err := git.HeadSHA(ctx); err == nil {
			head = sha
		}
	}
	state.RecordRun(sum, head)
	return pipeline.SaveState(statePath, state)
}

// uploadChangelog pushes the changelog CSV to the configured document library.
func uploadChangelog(ctx context.Context, cfg config.Config, printer *ui.Printer, emitter *telemetry.Emitter, runID string) error {
	if err := cfg.ValidateSharePoint(); err != nil {
		return err
	}

	data, err := os.ReadFile(cfg.ResolvePath(cfg.ChangelogPath))
	if err != nil {
		return fmt.Errorf("read changelog for upload: %w", err)
	}

	client := sharepoint.New(sharepoint.Options{
		TenantID:     cfg.SharePoint.TenantID,
		ClientID:     cfg.SharePoint.ClientID,
		ClientSecret: cfg.SharePoint.ClientSecret,
		SiteHost:     cfg.SharePoint.SiteHost,
		SitePath:     cfg.SharePoint.SitePath,
		DriveName:    cfg.SharePoint.DriveName,
	})

	err = client.Upload(ctx, cfg.SharePoint.Folder, cfg.SharePoint.RemoteName, data)
	if err != nil {
		emitter.Emit(telemetry.Event{
			Kind:  telemetry.KindUploadFailed,
			RunID: runID,
			Data:  map[string]string{"error": err.Error()},
		})
		printer.UploadFailed(cfg.SharePoint.RemoteName, err)
		return err
	}

	emitter.Emit(telemetry.Event{Kind: telemetry.KindUploadDone, RunID: runID})
	printer.Uploaded(cfg.SharePoint.RemoteName)
	return nil
}

// notifyRun posts the run outcome to Teams. Failures are logged, never fatal.
func notifyRun(ctx context.Context, cfg config.Config, log *slog.Logger, printer *ui.Printer, emitter *telemetry.Emitter, runID string, converted, failed int, detailsURL string) {
	notifier := teams.NewNotifier(cfg.Teams.WebhookURL)
	if !notifier.Enabled() {
		return
	}
	if err := notifier.Post(ctx, teams.RunCard(converted, failed, detailsURL)); err != nil {
		log.Warn("teams notification", "error", err)
		return
	}
	emitter.Emit(telemetry.Event{Kind: telemetry.KindNotifySent, RunID: runID})
	printer.NotifySent()
}
