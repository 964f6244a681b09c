// Package cli defines the cobra command tree for the service.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/apeks827/JiraTasksUpdate/internal/config"
)

// loaded carries the parsed config between PersistentPreRunE and the
// subcommand bodies.
type loaded struct {
	cfg *config.Config
}

func NewRootCmd(version string) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	state := &loaded{}

	cmd := &cobra.Command{
		Use:          "jiratasksupdate",
		Short:        "Automated Jira ticket assignment with Telegram notifications",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := config.SetupLogging(cfg.Logging, logLevel); err != nil {
				return err
			}
			state.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(state))
	cmd.AddCommand(newOnceCmd(state))
	cmd.AddCommand(newReportCmd(state))
	cmd.AddCommand(newDoctorCmd(state))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
