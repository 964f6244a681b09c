package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apeks827/JiraTasksUpdate/internal/report"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker/jiraclient"
)

func newReportCmd(state *loaded) *cobra.Command {
	var (
		format string
		out    string
		scope  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a ticket report to CSV or Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			token, err := cfg.JiraToken()
			if err != nil {
				return err
			}
			tc, err := jiraclient.New(jiraclient.Options{
				Server:     cfg.Jira.Server,
				Token:      token,
				MaxResults: cfg.Jira.MaxResults,
			})
			if err != nil {
				return err
			}

			queries := cfg.Jira.Search.WithDefaults()
			var jql string
			switch scope {
			case "new":
				jql = queries.NewTickets
			case "mine":
				jql = queries.MyTickets
			case "updates":
				jql = queries.RecentUpdates
			default:
				return fmt.Errorf("unknown scope %q (want new, mine, or updates)", scope)
			}

			tickets, err := tc.Search(cmd.Context(), jql)
			if err != nil {
				return err
			}

			r := report.Reporter{Dir: cfg.Reports.Dir}
			var path string
			switch format {
			case "csv":
				path, err = r.ExportCSV(tickets, out+".csv")
			case "markdown", "md":
				path, err = r.ExportMarkdown(tickets, out+".md")
			default:
				return fmt.Errorf("unknown format %q (want csv or markdown)", format)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d issues to %s\n", len(tickets), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or markdown")
	cmd.Flags().StringVar(&out, "out", "issues", "Output file name (without extension)")
	cmd.Flags().StringVar(&scope, "scope", "new", "Ticket scope: new, mine, or updates")

	return cmd
}
