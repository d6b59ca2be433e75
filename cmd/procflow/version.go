package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grand-thief-cash/procflow/internal/consts"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "procflow %s\n", consts.ENGINE_VERSION)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
