package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/grand-thief-cash/procflow/internal/registry_ext"
)

var rootCmd = &cobra.Command{
	Use:   "procflow",
	Short: "procflow runs BPMN 2.0 processes behind an Activiti-style REST API",
}

func init() {
	rootCmd.PersistentFlags().String("config", "config/config.yaml", "path to the application config file")
	rootCmd.PersistentFlags().String("env", "", "running environment: development, test or production")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
