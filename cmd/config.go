package cmd

import (
	"github.com/spf13/cobra"
)

// configCmd groups configuration utilities (currently just validate).
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Interact with the configuration",
	Long:  `Utilities for validating and viewing the AdGate configuration`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
