package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tjamescouch/personas/internal/httpx"
)

var hubURL string

var rootCmd = &cobra.Command{
	Use:   "personactl",
	Short: "Operator CLI for the persona signal hub",
	Long: `personactl - drive and observe a running persona hub.

The hub address comes from --hub, or the HUB_ADDR environment variable,
or defaults to http://127.0.0.1:8080.

Examples:
  # Trigger a pose from the library
  personactl pose smile

  # Replay a recorded telemetry capture at token cadence
  personactl feed -f capture.ndjson --interval 40ms

  # Watch everything flowing through the hub
  personactl tail`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	def := os.Getenv("HUB_ADDR")
	if def == "" {
		def = "http://127.0.0.1:8080"
	}
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", def, "hub base URL")
}

func hubClient() *httpx.Client {
	return httpx.New(hubURL)
}
