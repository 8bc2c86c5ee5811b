package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjamescouch/personas/internal/signal"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream live hub events to stdout",
	Long: `Subscribe to the hub's SSE stream and print one line per event. The
stream opens with a replay of recent history, then follows live traffic
until the hub goes away or the process is interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := strings.TrimRight(hubURL, "/") + "/api/stream?name=personactl"
		req, err := http.NewRequestWithContext(cmd.Context(), "GET", url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stream returned %d", resp.StatusCode)
		}

		parser := newSSEParser(resp.Body)
		for {
			frame, err := parser.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			}
			printFrame(frame)
		}
	},
}

func printFrame(f sseFrame) {
	switch f.Event {
	case signal.KindSignal:
		var sig signal.Signal
		if err := json.Unmarshal(f.Data, &sig); err != nil {
			fmt.Printf("%s %s\n", f.Event, f.Data)
			return
		}
		fmt.Printf("signal seq=%d code=%s confidence=%.2f uncertainty=%.2f delay=%dms\n",
			sig.Sequence, sig.Code, sig.Confidence, sig.Uncertainty, sig.InterTokenDelayMs)
	case signal.KindPose:
		var cmd signal.PoseCommand
		if err := json.Unmarshal(f.Data, &cmd); err != nil {
			fmt.Printf("%s %s\n", f.Event, f.Data)
			return
		}
		fmt.Printf("pose name=%s channels=%d\n", cmd.Name, len(cmd.ChannelWeights))
	default:
		fmt.Printf("%s %s\n", f.Event, f.Data)
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)
}
