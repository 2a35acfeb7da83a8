package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adgate/adgate/internal/audit"
)

var fingerprintRaw bool

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint [token]",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a platform token`,
	Long: `Calculates the fingerprint of a token (SHA256, Base64-encoded).
This is the value shown in credential listings and audit entries, so a raw
token found elsewhere can be matched against stored credentials.`,
	Example: `  # Calculate the fingerprint of a token
  adgate fingerprint ya29.a0Af...

  # Calculate fingerprint of a token from stdin
  echo "ya29..." | adgate fingerprint -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string

		if args[0] != "-" {
			token = args[0]
		} else {
			// read from stdin
			log.Debug().Msg("Reading token from stdin")

			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(string(data))
		}

		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		fp := audit.Fingerprint(token)

		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
