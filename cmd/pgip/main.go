// Command pgip is the command-line client for the PanGenome Insight Platform
// plugin registry.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIURL = "http://localhost:8000"

var apiURL string

var rootCmd = &cobra.Command{
	Use:           "pgip",
	Short:         "Interact with the PanGenome Insight Platform backend",
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "",
		"backend API URL (default: $PGIP_BACKEND_URL or "+defaultAPIURL+")")
	_ = viper.BindPFlag("backend_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.SetEnvPrefix("PGIP")
	_ = viper.BindEnv("backend_url")
	viper.SetDefault("backend_url", defaultAPIURL)

	rootCmd.AddCommand(newPluginsCmd())
}

func backendURL() string {
	if apiURL != "" {
		return apiURL
	}
	return viper.GetString("backend_url")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
