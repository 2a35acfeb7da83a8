package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var adminCredentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "List all stored platform credentials",
	Long: `Retrieves every stored credential across workspaces: owner, platform,
lifecycle status and expiry. Token material is redacted to fingerprints.

This command requires an authenticated session (via 'adgate login') with admin privileges.`,
	Example: `  adgate admin credentials`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching credentials...")
		creds, correlation, err := cli.ListAllCredentials(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch credentials")
		}

		if len(creds) == 0 {
			log.Info().Msg("No credentials found")
			return nil
		}
		log.Debug().Msgf("Retrieved %d credential(s)", len(creds))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Created", "Principal", "Platform", "Status", "Expires", "Uses", "Fingerprint",
		})

		for _, c := range creds {
			expires := "(never)"
			if c.ExpiresAt != nil {
				timeLeft := time.Until(*c.ExpiresAt).Round(time.Minute)
				expires = fmt.Sprintf("%s (%s)", c.ExpiresAt.Format("15:04"), faint(timeLeft.String()))
			}

			t.AppendRow(table.Row{
				c.CreatedAt.Format(time.RFC3339),
				bold(truncate(c.PrincipalID, 32)),
				c.Platform,
				c.Status,
				expires,
				c.UsageCount,
				faint(truncate(c.Fingerprint, 16)),
			})
		}

		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminCredentialsCmd)
}
