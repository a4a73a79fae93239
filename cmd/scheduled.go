package cmd

import (
	"github.com/spf13/cobra"
)

// scheduledCmd represents the scheduled command
var scheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "Manage scheduled messages",
	Long:  `Create, list, delete, import and export scheduled SMS and email messages.`,
}

func init() {
	rootCmd.AddCommand(scheduledCmd)
}
