package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDoctorCmd(state *loaded) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg

			var problems []string
			if os.Getenv(cfg.Jira.TokenEnvVar) == "" {
				problems = append(problems, fmt.Sprintf("missing credential: %s is not set", cfg.Jira.TokenEnvVar))
			}
			if os.Getenv(cfg.Telegram.TokenEnvVar) == "" {
				problems = append(problems, fmt.Sprintf("missing credential: %s is not set", cfg.Telegram.TokenEnvVar))
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d assignees in rotation, %d sleep hours\n",
				len(cfg.Assignee.Rotation), len(cfg.TimeControl.SleepHours))
			return nil
		},
	}
	return cmd
}
