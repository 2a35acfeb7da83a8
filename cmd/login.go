package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adgate/adgate/internal/cliconfig"
	"github.com/adgate/adgate/pkg/client"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Save an admin session token for a server",
	Long: `Saves an admin session token (an HMAC-signed JWT carrying the admin role)
for the given server. The token is stored locally and used by the admin
commands (audits, credentials).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionToken := args[0]
		if sessionToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server := viper.GetString(ServerAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		// check the session against the server before saving it
		cli := client.New(server, client.WithAuthToken(sessionToken))
		if _, correlation, err := cli.ListAllCredentials(cmd.Context()); err != nil {
			return logError(err, correlation, "session token rejected by server")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if err := cfg.SetCredential(server, sessionToken); err != nil {
			return fmt.Errorf("saving session token: %w", err)
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(u.Host))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
