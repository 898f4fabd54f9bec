package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frostaag/diagrams-v2/internal/changelog"
	"github.com/frostaag/diagrams-v2/internal/config"
	"github.com/frostaag/diagrams-v2/internal/drawio"
	"github.com/frostaag/diagrams-v2/internal/ui"
	"github.com/frostaag/diagrams-v2/internal/vcs"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the pipeline's environment and configuration",
	Long: "Validate verifies the drawio binary, git repository, changelog file,\n" +
		"and SharePoint credentials without processing anything.",
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("strict", false, "fail on warnings (missing credentials, webhook)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	strict, _ := cmd.Flags().GetBool("strict")
	printer := ui.New()

	failures := 0
	warnings := 0

	conv := &drawio.Converter{BinPath: cfg.Render.BinPath}
	if err := conv.Validate(); err != nil {
		printer.Error(err.Error())
		failures++
	} else {
		printer.Info(fmt.Sprintf("drawio binary ok (%s)", cfg.Render.BinPath))
	}

	if _, err := vcs.New(cmd.Context(), cfg.WorkDir); err != nil {
		printer.Warn(fmt.Sprintf("git: %v", err))
		warnings++
	} else {
		printer.Info("git repository ok")
	}

	changelogPath := cfg.ResolvePath(cfg.ChangelogPath)
	if _, err := os.Stat(changelogPath); err == nil {
		if _, err := changelog.Read(changelogPath); err != nil {
			printer.Error(err.Error())
			failures++
		} else {
			printer.Info(fmt.Sprintf("changelog parses (%s)", changelogPath))
		}
	} else {
		printer.Info("changelog not yet created")
	}

	if err := cfg.ValidateSharePoint(); err != nil {
		printer.Warn(err.Error())
		warnings++
	} else {
		printer.Info("sharepoint credentials present")
	}

	if cfg.Teams.WebhookURL == "" {
		printer.Warn("no teams webhook configured")
		warnings++
	} else {
		printer.Info("teams webhook configured")
	}

	if failures > 0 {
		return fmt.Errorf("validation failed: %d problem(s)", failures)
	}
	if strict && warnings > 0 {
		return fmt.Errorf("validation failed in strict mode: %d warning(s)", warnings)
	}
	return nil
}
