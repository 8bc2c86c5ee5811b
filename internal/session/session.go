// Package session runs one subscriber's animation state: it consumes events
// from the hub, routes signals to the mapper and pose commands to the
// machine, and produces a composited channel-weight table every render
// tick. Feed and Tick are never called concurrently; Run drives both from a
// single goroutine so the per-subscriber tables have exactly one owner.
package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/tjamescouch/personas/internal/blend"
	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/manifest"
	"github.com/tjamescouch/personas/internal/pose"
	"github.com/tjamescouch/personas/internal/signal"
	"github.com/tjamescouch/personas/internal/viseme"
)

const (
	// DefaultTickHz is the render tick rate when the caller does not set one.
	DefaultTickHz = 60
	// DefaultStallSeconds is how long the signal stream may go quiet before
	// targets decay to the neutral face.
	DefaultStallSeconds = 2.0
)

// Renderer receives the composited weight table each tick. Implementations
// must return quickly; a slow renderer stalls its own session's tick loop
// and nothing else.
type Renderer interface {
	ApplyWeights(weights map[string]float64)
}

// Config tunes one session. Zero values select production defaults; tests
// inject a seeded Rand and custom timings for determinism.
type Config struct {
	TickHz       int
	FadeSeconds  float64
	HoldSeconds  float64
	StallSeconds float64
	Blink        viseme.Config
	Rand         *rand.Rand
}

// Session owns the mapper, smoother and pose machine for one subscriber.
type Session struct {
	id       string
	tickHz   int
	stall    float64
	mapper   *viseme.Mapper
	smoother *blend.Smoother
	machine  *pose.Machine

	sinceSignalS float64
	sinceMapMs   float64
	neutral      map[string]float64
	ticks        uint64
}

// New builds a session. id is the hub subscriber id, kept for log
// correlation.
func New(id string, cfg Config) *Session {
	if cfg.TickHz <= 0 {
		cfg.TickHz = DefaultTickHz
	}
	if cfg.StallSeconds <= 0 {
		cfg.StallSeconds = DefaultStallSeconds
	}
	if cfg.Blink == (viseme.Config{}) {
		cfg.Blink = viseme.DefaultConfig()
	}
	s := &Session{
		id:       id,
		tickHz:   cfg.TickHz,
		stall:    cfg.StallSeconds,
		mapper:   viseme.NewMapper(cfg.Blink, cfg.Rand),
		smoother: blend.NewSmoother(),
		machine:  pose.NewMachine(cfg.FadeSeconds, cfg.HoldSeconds),
		neutral:  neutralTable(),
	}
	// Before the first signal arrives the face rests on the neutral table,
	// the same shape a stalled stream decays to.
	s.smoother.SetTargets(s.neutral)
	return s
}

// neutralTable is the stalled-stream target: mouth closed, expressions off,
// the default face fully on. Ambient scale stays with the pose machine.
func neutralTable() map[string]float64 {
	t := make(map[string]float64)
	for _, ch := range viseme.MouthChannels() {
		t[ch] = 0
	}
	for _, ch := range viseme.ExpressionChannels() {
		t[ch] = 0
	}
	t[viseme.ChannelNeutral] = 1
	t[viseme.ChannelBlink] = 0
	return t
}

// Feed routes one event into the session: signals update the smoother's
// targets through the mapper, pose commands enter the machine's queue.
func (s *Session) Feed(ev signal.Event) {
	switch {
	case ev.Signal != nil:
		targets := s.mapper.Map(ev.Signal, s.sinceMapMs)
		s.sinceMapMs = 0
		s.sinceSignalS = 0
		s.smoother.SetTargets(targets)
	case ev.Pose != nil:
		s.machine.Enqueue(pose.Command{
			Name:    ev.Pose.Name,
			Weights: ev.Pose.ChannelWeights,
		})
		logging.Debugw("pose enqueued", logging.PoseFields(ev.Pose.Name, s.machine.State().String())...)
	}
}

// Tick advances the session by dt seconds and returns the composited weight
// table for the renderer: smoothed ambient values, pose override on the
// channels the active command controls, and the machine's ambient scale on
// the ambient channel.
func (s *Session) Tick(dt float64) map[string]float64 {
	s.ticks++
	s.sinceSignalS += dt
	s.sinceMapMs += dt * 1000

	if s.sinceSignalS >= s.stall {
		s.smoother.SetTargets(s.neutral)
	}

	s.smoother.Step(dt)
	out := s.machine.Advance(dt)

	weights := blend.Compose(s.smoother.Values(), out.Weights)
	weights[manifest.AmbientChannel] = out.Ambient
	return weights
}

// MachineState exposes the pose machine phase for diagnostics.
func (s *Session) MachineState() pose.State { return s.machine.State() }

// Ticks returns how many render ticks have run.
func (s *Session) Ticks() uint64 { return s.ticks }

// Run consumes events and drives the render tick from one goroutine until
// ctx is canceled or the event channel closes. dt is measured between
// ticker firings so a delayed tick still advances simulated time correctly.
func (s *Session) Run(ctx context.Context, events <-chan signal.Event, renderer Renderer) {
	interval := time.Second / time.Duration(s.tickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Infow("session started", logging.SessionFields(s.id, "")...)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logging.Infow("session stopped", "session.id", s.id, "ticks", s.ticks)
			return
		case ev, ok := <-events:
			if !ok {
				logging.Infow("session event stream closed", "session.id", s.id, "ticks", s.ticks)
				return
			}
			s.Feed(ev)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			renderer.ApplyWeights(s.Tick(dt))
		}
	}
}
