package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjamescouch/personas/internal/httpx"
)

type poseArgs struct {
	Name           string             `json:"name,omitempty"`
	ChannelWeights map[string]float64 `json:"channelWeights,omitempty"`
}

type signalArgs struct {
	Code              string  `json:"code"`
	Confidence        float64 `json:"confidence,omitempty"`
	Uncertainty       float64 `json:"uncertainty,omitempty"`
	InterTokenDelayMs uint64  `json:"interTokenDelayMs,omitempty"`
	Sequence          uint64  `json:"sequence,omitempty"`
}

func textResult(format string, args ...interface{}) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// registerTools binds the hub-facing tools. Handlers forward over HTTP so
// the MCP process needs no hub internals, just a reachable base URL.
func registerTools(server *sdk.Server, client *httpx.Client) {
	sdk.AddTool(server, &sdk.Tool{
		Name:        "persona_pose",
		Description: "Trigger an avatar pose: a named pose from the library, or raw channel weights.",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args poseArgs) (*sdk.CallToolResult, any, error) {
		var out struct {
			Pose     string `json:"pose"`
			Channels int    `json:"channels"`
		}
		if err := client.PostValue(ctx, "/api/poses", args, &out, uuid.NewString()); err != nil {
			return nil, nil, err
		}
		return textResult("pose %q published (%d channels)", out.Pose, out.Channels), nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "persona_signal",
		Description: "Inject one raw telemetry signal (phoneme code plus confidence/uncertainty), mainly for testing.",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args signalArgs) (*sdk.CallToolResult, any, error) {
		var out struct {
			Accepted int `json:"accepted"`
		}
		if err := client.PostValue(ctx, "/api/signals", args, &out, uuid.NewString()); err != nil {
			return nil, nil, err
		}
		return textResult("%d signal(s) accepted", out.Accepted), nil, nil
	})
}
