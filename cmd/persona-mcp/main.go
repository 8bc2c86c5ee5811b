// persona-mcp exposes the hub's pose and signal ingest as MCP tools so an
// agent runtime can puppet the avatar. It speaks stdio for spawned-process
// setups and WebSocket for long-running ones; either way the tool calls
// forward to the hub's HTTP API.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tjamescouch/personas/internal/httpx"
	"github.com/tjamescouch/personas/internal/logging"
)

func main() {
	sugar := logging.Init()
	if sugar == nil {
		l, _ := zap.NewProduction()
		defer l.Sync()
		sugar = l.Sugar()
	}

	hubURL := os.Getenv("HUB_ADDR")
	if hubURL == "" {
		hubURL = "http://127.0.0.1:8080"
	}
	client := httpx.New(hubURL)

	server := sdk.NewServer(&sdk.Implementation{Name: "persona-mcp", Version: "v0.1.0"}, nil)
	registerTools(server, client)

	transport := os.Getenv("MCP_TRANSPORT")
	if transport == "" {
		transport = "stdio"
	}
	switch transport {
	case "stdio":
		sugar.Infow("mcp server on stdio", "hub", hubURL)
		if err := server.Run(context.Background(), &sdk.StdioTransport{}); err != nil {
			sugar.Fatalf("mcp server exited: %v", err)
		}
	case "ws":
		addr := os.Getenv("MCP_ADDR")
		if addr == "" {
			addr = ":9001"
		}
		serveWS(server, addr, sugar)
	default:
		sugar.Fatalf("unknown MCP_TRANSPORT %q (want stdio or ws)", transport)
	}
}

// serveWS accepts MCP clients over WebSocket; each connection is bridged to
// the SDK server through a jsonrpc transport.
func serveWS(server *sdk.Server, addr string, sugar *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sugar.Warnf("ws upgrade failed: %v", err)
			return
		}
		go func() {
			session, err := server.Connect(context.Background(), newWSTransport(conn), nil)
			if err != nil {
				sugar.Warnf("mcp connect error: %v", err)
				_ = conn.Close()
				return
			}
			if err := session.Wait(); err != nil {
				sugar.Infow("mcp session ended", "err", err)
			} else {
				sugar.Infow("mcp session ended")
			}
		}()
	})

	sugar.Infow("mcp server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		sugar.Fatalf("mcp server failed: %v", err)
	}
}
