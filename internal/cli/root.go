package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Decay-scored memory for AI agents",
	Long:  "Engram stores agent memories with usage- and time-driven decay, duplicate folding, and token-budgeted retrieval. Single Go binary.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (TOML)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(statsCmd)
}
