package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tjamescouch/personas/internal/hub"
	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/manifest"
	"github.com/tjamescouch/personas/internal/server"
	"github.com/tjamescouch/personas/internal/session"
)

// envInt reads an integer environment variable, warning and keeping the
// default on anything unparsable.
func envInt(sugar *zap.SugaredLogger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		sugar.Warnf("invalid %s=%s; using default %d", key, v, def)
		return def
	}
	return n
}

func envBool(sugar *zap.SugaredLogger, key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		sugar.Warnf("invalid %s=%s; treating as false", key, v)
		return false
	}
	return b
}

func main() {
	sugar := logging.Init()
	if sugar == nil {
		l, _ := zap.NewProduction()
		defer l.Sync()
		sugar = l.Sugar()
	}

	addr := os.Getenv("HUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	histCap := envInt(sugar, "HISTORY_CAPACITY", hub.DefaultHistoryCapacity)
	heartbeatMs := envInt(sugar, "SSE_HEARTBEAT_MS", int(server.DefaultHeartbeat/time.Millisecond))
	tickHz := envInt(sugar, "TICK_RATE_HZ", session.DefaultTickHz)

	vocab := manifest.Default()
	if path := os.Getenv("MANIFEST_PATH"); path != "" {
		rep, err := manifest.LoadReport(path)
		if err != nil {
			sugar.Fatalf("load avatar manifest %s: %v", path, err)
		}
		vocab.Merge(rep)
		sugar.Infow("avatar manifest merged", "path", path, "avatar", vocab.Avatar(), "channels", vocab.Len())
	}

	library := manifest.DefaultLibrary()
	if path := os.Getenv("POSES_PATH"); path != "" {
		lib, err := manifest.LoadLibrary(path, vocab)
		if err != nil {
			sugar.Fatalf("load pose library %s: %v", path, err)
		}
		library = lib
		sugar.Infow("pose library loaded", "path", path, "poses", len(lib.Names()))
	}

	h := hub.New(histCap, 0)
	srv := server.New(h, vocab, library, server.Config{
		Heartbeat: time.Duration(heartbeatMs) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PREVIEW_RENDERER attaches an in-process session that logs a weight
	// summary once a second, so the animation path can be watched without a
	// real renderer connected.
	if envBool(sugar, "PREVIEW_RENDERER") {
		sub, _ := h.Subscribe("preview")
		sess := session.New(sub.ID(), session.Config{TickHz: tickHz})
		go sess.Run(ctx, sub.Events(), newPreviewRenderer(tickHz))
		sugar.Infow("preview renderer attached", "tick_hz", tickHz)
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
	go func() {
		sugar.Infow("hub listening", "addr", addr, "history_capacity", histCap, "heartbeat_ms", heartbeatMs)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.FatalExitf("http server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutdown signal received, closing resources")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("http shutdown error: %v", err)
	}

	if l := zap.L(); l != nil {
		_ = l.Sync()
	}
	sugar.Info("shutdown complete")
}
