package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frostaag/diagrams-v2/internal/config"
	"github.com/frostaag/diagrams-v2/internal/teams"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a Teams notification for a finished run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		converted, _ := cmd.Flags().GetInt("converted")
		failed, _ := cmd.Flags().GetInt("failed")
		detailsURL, _ := cmd.Flags().GetString("details-url")

		notifier := teams.NewNotifier(cfg.Teams.WebhookURL)
		if !notifier.Enabled() {
			return fmt.Errorf("no teams webhook configured (teams.webhook_url)")
		}
		return notifier.Post(cmd.Context(), teams.RunCard(converted, failed, detailsURL))
	},
}

func init() {
	notifyCmd.Flags().Int("converted", 0, "number of converted diagrams")
	notifyCmd.Flags().Int("failed", 0, "number of failed diagrams")
	notifyCmd.Flags().String("details-url", "", "link back to the CI run")
	rootCmd.AddCommand(notifyCmd)
}
