package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/adgate/adgate/internal/cliconfig"
	"github.com/adgate/adgate/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintfFunc()

	redCross   = color.New(color.FgRed, color.Bold).Sprint("✗")
	greenCheck = color.New(color.FgGreen, color.Bold).Sprint("✓")
)

// BeQuietError signals that the error was already reported to the user and
// must not be logged again by the root command.
type BeQuietError struct{}

func (BeQuietError) Error() string { return "" }

func logError(err error, correlationID, msg string) error {
	if correlationID != "" {
		log.Error().Msgf("%s %s (correlation ID: %s)", redCross, msg, correlationID)
	} else {
		log.Error().Msgf("%s %s", redCross, msg)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(ServerAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured, provide via --server or env")
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		// missing user config just means no saved session
		return client.New(server), nil
	}

	var adminToken string

	credential, err := cfg.GetCredential(server)
	if err != nil {
		if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	} else {
		adminToken = credential.Token
	}

	return client.New(server, client.WithAuthToken(adminToken)), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
