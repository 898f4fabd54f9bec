package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frostaag/diagrams-v2/internal/config"
	"github.com/frostaag/diagrams-v2/internal/teams"
	"github.com/frostaag/diagrams-v2/internal/ui"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the changelog CSV to SharePoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		printer := ui.New()
		runID := time.Now().UTC().Format("20060102T150405Z")
		if err := uploadChangelog(cmd.Context(), cfg, printer, nil, runID); err != nil {
			return err
		}

		skipNotify, _ := cmd.Flags().GetBool("skip-notify")
		if !skipNotify {
			notifier := teams.NewNotifier(cfg.Teams.WebhookURL)
			if notifier.Enabled() {
				card := teams.PublishCard(cfg.SharePoint.RemoteName)
				if err := notifier.Post(cmd.Context(), card); err != nil {
					printer.Warn(fmt.Sprintf("teams notification: %v", err))
				} else {
					printer.NotifySent()
				}
			}
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().Bool("skip-notify", false, "do not send a Teams notification")
	rootCmd.AddCommand(publishCmd)
}
