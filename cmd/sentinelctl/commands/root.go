// Package commands implements sentinelctl, the operator CLI that drives a
// running sentinel server over its HTTP admin surface.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "sentinelctl",
	Short: "Operator CLI for the sentinel metering proxy",
}

func Execute() error {
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "base URL of the sentinel server")
}
