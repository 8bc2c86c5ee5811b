// Package server is the HTTP boundary of the hub: signal and pose ingest,
// the SSE event stream, WebSocket ingest and operational endpoints.
// Validation happens here, before anything reaches the hub; a request that
// gets a 2xx has already been published in full.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tjamescouch/personas/internal/hub"
	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/manifest"
	"github.com/tjamescouch/personas/internal/signal"
)

const (
	// DefaultHeartbeat is the SSE keepalive interval for quiet streams.
	DefaultHeartbeat = 15 * time.Second
	// DefaultMaxBodyBytes bounds ingest request bodies and WS frames.
	DefaultMaxBodyBytes = 1 << 20
)

// Config tunes the HTTP boundary. Zero values select defaults.
type Config struct {
	Heartbeat    time.Duration
	MaxBodyBytes int64
}

// Server wires the hub and the channel vocabulary to HTTP handlers.
type Server struct {
	hub      *hub.Hub
	vocab    *manifest.Vocabulary
	library  *manifest.Library
	cfg      Config
	upgrader websocket.Upgrader
}

// New builds a server around hub. vocab validates pose channel names at the
// boundary; library resolves named poses for /api/poses.
func New(h *hub.Hub, vocab *manifest.Vocabulary, library *manifest.Library, cfg Config) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		hub:     h,
		vocab:   vocab,
		library: library,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/poses", s.handlePoses)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/stream/ws", s.handleStreamWS)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

type ingestResponse struct {
	Accepted      int    `json:"accepted"`
	CorrelationID string `json:"correlationId"`
}

type poseRequest struct {
	Name           string             `json:"name"`
	ChannelWeights map[string]float64 `json:"channelWeights"`
}

type poseResponse struct {
	Pose          string `json:"pose"`
	Channels      int    `json:"channels"`
	CorrelationID string `json:"correlationId"`
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId"`
}

type statsResponse struct {
	Avatar   string    `json:"avatar"`
	Channels int       `json:"channels"`
	Hub      hub.Stats `json:"hub"`
}

// handleSignals ingests one event or an ordered batch. The whole batch is
// parsed and validated before the first publish: a 400 means nothing
// reached the hub, a 200 means everything did, in array order.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	corrID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", corrID)
		return
	}

	events, err := signal.ParseBatch(body)
	if err != nil {
		logging.Debugw("signal batch rejected", "err", err, "correlation_id", corrID)
		writeError(w, http.StatusBadRequest, err.Error(), corrID)
		return
	}
	if err := s.validateEvents(events); err != nil {
		logging.Debugw("signal batch rejected", "err", err, "correlation_id", corrID)
		writeError(w, statusFor(err), err.Error(), corrID)
		return
	}

	for _, ev := range events {
		s.hub.Publish(ev)
	}
	writeJSON(w, http.StatusOK, ingestResponse{Accepted: len(events), CorrelationID: corrID})
}

// validateEvents runs the full batch through semantic validation. Pose
// channel names are checked against the vocabulary here so a typo never
// reaches a render session.
func (s *Server) validateEvents(events []signal.Event) error {
	for _, ev := range events {
		switch {
		case ev.Signal != nil:
			if err := ev.Signal.Validate(); err != nil {
				return err
			}
		case ev.Pose != nil:
			if err := ev.Pose.Validate(); err != nil {
				return err
			}
			if err := s.vocab.ValidateWeights(ev.Pose.ChannelWeights); err != nil {
				return err
			}
		}
	}
	return nil
}

// handlePoses publishes one pose command: either a named pose resolved
// through the library, or raw channel weights.
func (s *Server) handlePoses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	corrID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req poseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error(), corrID)
		return
	}

	weights := req.ChannelWeights
	if req.Name != "" && len(weights) == 0 {
		resolved, err := s.library.Resolve(req.Name)
		if err != nil {
			writeError(w, statusFor(err), err.Error(), corrID)
			return
		}
		weights = resolved
	}

	cmd := &signal.PoseCommand{Kind: signal.KindPose, Name: req.Name, ChannelWeights: weights}
	if err := cmd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), corrID)
		return
	}
	if err := s.vocab.ValidateWeights(weights); err != nil {
		writeError(w, statusFor(err), err.Error(), corrID)
		return
	}

	s.hub.Publish(signal.Event{Pose: cmd})
	logging.Infow("pose published", "pose.name", req.Name, "channels", len(weights), "correlation_id", corrID)
	writeJSON(w, http.StatusOK, poseResponse{Pose: req.Name, Channels: len(weights), CorrelationID: corrID})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Avatar:   s.vocab.Avatar(),
		Channels: s.vocab.Len(),
		Hub:      s.hub.Stats(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// statusFor maps domain sentinels to HTTP statuses at the boundary.
func statusFor(err error) int {
	switch {
	case errors.Is(err, manifest.ErrUnknownPose):
		return http.StatusNotFound
	case errors.Is(err, manifest.ErrUnknownChannel), errors.Is(err, signal.ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, corrID string) {
	writeJSON(w, status, errorResponse{Error: msg, CorrelationID: corrID})
}
