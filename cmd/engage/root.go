package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "engage",
	Short: "Engage - video engagement analysis sessions",
	Long: `Engage accepts a recorded lecture video, opens the self-monitoring camera,
uploads the video to the engagement analysis service and renders the returned
engagement heatmap, confusion events and notes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if present (ignore errors)
		_ = godotenv.Load()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults and ENGAGE_* variables when empty)")
}
