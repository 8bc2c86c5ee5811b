package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var poseCmd = &cobra.Command{
	Use:   "pose <name>",
	Short: "Trigger a named pose on the hub",
	Long: `Trigger a pose from the hub's pose library. The hub resolves the name
to its authored channel weights and broadcasts the command to every
connected renderer.

Examples:
  personactl pose smile
  personactl pose thinking --hub http://hub.local:8080`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Pose     string `json:"pose"`
			Channels int    `json:"channels"`
		}
		req := map[string]string{"name": args[0]}
		if err := hubClient().PostValue(cmd.Context(), "/api/poses", req, &out, uuid.NewString()); err != nil {
			return err
		}
		fmt.Printf("pose %q published (%d channels)\n", out.Pose, out.Channels)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(poseCmd)
}
