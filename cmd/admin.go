package cmd

import (
	"github.com/spf13/cobra"
)

// adminCmd groups the operator-plane commands. They require an admin session
// saved via 'adgate login'.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect audit logs and stored credentials",
}

func init() {
	rootCmd.AddCommand(adminCmd)
}
