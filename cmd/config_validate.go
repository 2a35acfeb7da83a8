package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adgate/adgate/internal/config"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		log.Info().
			Int("identity_verifiers", len(cfg.Identity)).
			Int("platforms", len(cfg.Platforms)).
			Str("storage", cfg.Storage.Type).
			Msg("Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
