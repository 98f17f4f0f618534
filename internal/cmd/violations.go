package cmd

import "github.com/spf13/cobra"

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "Manage the persisted violation audit trail",
}

func init() {
	violationsCmd.AddCommand(violationsListCmd)
	violationsCmd.AddCommand(violationsResetCmd)
	rootCmd.AddCommand(violationsCmd)
}
