// Command tally is the CLI client for the tally service.
package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/tally/internal/client"
	"github.com/alfredjeanlab/tally/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	tallyClient *client.HTTPClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("TALLY_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("TALLY_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "tally <command>",
	Short: "CLI client for the Tally service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		tallyClient = client.NewHTTPClient(httpURL, authToken)
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tallyClient != nil {
			tallyClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "url", defaultHTTPURL(), "server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(
		appendCmd,
		dailyCmd,
		itemCmd,
		customerCmd,
		rollupCmd,
		auditCmd,
		partitionsCmd,
		healthCmd,
		watchCmd,
		remoteCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
