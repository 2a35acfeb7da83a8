package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adgate/adgate/pkg/client"
)

var (
	auditFilterAction      string
	auditFilterUserID      string
	auditFilterWorkspaceID string
	auditFilterPrincipalID string
)

// adminAuditsCmd represents the admin audits command
var adminAuditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Retrieve and display audit log entries",
	Example: `  # show the last 25 permission decisions of a user
  adgate admin audits --action authz.decision --user u-123 -n 25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:       uint(limit),
			Action:      auditFilterAction,
			UserID:      auditFilterUserID,
			WorkspaceID: auditFilterWorkspaceID,
			PrincipalID: auditFilterPrincipalID,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Actor", "Workspace", "Granted", "Error",
		})

		for _, e := range audits {
			status := "YES"
			if !e.Granted {
				status = "NO"
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				truncate(e.ActorID, 35),
				truncate(e.WorkspaceID, 20),
				status,
				e.Error,
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminAuditsCmd)

	adminAuditsCmd.Flags().IntP("limit", "n", 25, "Number of audit entries to retrieve")
	adminAuditsCmd.Flags().StringVar(&auditFilterAction, "action", "", "Filter by action")
	adminAuditsCmd.Flags().StringVar(&auditFilterUserID, "user", "", "Filter by acting user id")
	adminAuditsCmd.Flags().StringVar(&auditFilterWorkspaceID, "workspace", "", "Filter by workspace id")
	adminAuditsCmd.Flags().StringVar(&auditFilterPrincipalID, "principal", "", "Filter by principal id")
}
