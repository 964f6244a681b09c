package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/apeks827/JiraTasksUpdate/internal/daemon"
)

func newRunCmd(state *loaded) *cobra.Command {
	var (
		dryRun      bool
		noTelegram  bool
		noTimeGate  bool
		intervalSec int
		pprofAddr   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon continuously (poller, watcher, time gate, bot)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				slog.Warn("dry-run mode: no tracker mutations or notifications will be made")
			}
			return daemon.StartForeground(cmd.Context(), daemon.Options{
				Config:       state.cfg,
				DryRun:       dryRun,
				NoTelegram:   noTelegram,
				NoTimeGate:   noTimeGate,
				PollInterval: time.Duration(intervalSec) * time.Second,
				PprofAddr:    pprofAddr,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log actions without transitioning, assigning, or notifying")
	cmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "Disable Telegram notifications and the command surface")
	cmd.Flags().BoolVar(&noTimeGate, "no-time-control", false, "Disable the day/night time gate (run 24/7)")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Override new-ticket polling interval (seconds)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")

	return cmd
}
