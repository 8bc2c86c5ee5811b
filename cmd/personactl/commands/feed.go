package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	feedFile     string
	feedInterval time.Duration
)

var feedCmd = &cobra.Command{
	Use:   "feed -f <file>",
	Short: "Replay recorded telemetry into the hub",
	Long: `Replay newline-delimited JSON events into the hub's ingest endpoint.
Each non-blank line is one event (or an array of them); lines starting
with # are skipped. Lines post one at a time with --interval between
them, so a capture plays back at roughly its original token cadence.

Use '-' to read from stdin.

Examples:
  personactl feed -f capture.ndjson
  personactl feed -f capture.ndjson --interval 0s   # as fast as possible
  generate-tokens | personactl feed -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedFile == "" {
			return fmt.Errorf("flag -f is required")
		}

		var r io.Reader
		if feedFile == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(feedFile)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		client := hubClient()
		corrID := uuid.NewString()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		sent := 0
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			var out struct {
				Accepted int `json:"accepted"`
			}
			if err := client.PostValue(cmd.Context(), "/api/signals", json.RawMessage(line), &out, corrID); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			sent += out.Accepted
			if feedInterval > 0 {
				time.Sleep(feedInterval)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		fmt.Printf("%d event(s) published\n", sent)
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedFile, "file", "f", "", "ndjson telemetry file (use '-' for stdin)")
	feedCmd.Flags().DurationVar(&feedInterval, "interval", 40*time.Millisecond, "delay between lines")
	rootCmd.AddCommand(feedCmd)
}
