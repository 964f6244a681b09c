package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/apeks827/JiraTasksUpdate/internal/daemon"
)

func newOnceCmd(state *loaded) *cobra.Command {
	var (
		dryRun     bool
		noTelegram bool
	)

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Process one batch of new tickets and updates, then exit (cron mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				slog.Warn("dry-run mode: no tracker mutations or notifications will be made")
			}
			return daemon.RunOnce(cmd.Context(), daemon.Options{
				Config:     state.cfg,
				DryRun:     dryRun,
				NoTelegram: noTelegram,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log actions without transitioning, assigning, or notifying")
	cmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "Disable Telegram notifications")

	return cmd
}
