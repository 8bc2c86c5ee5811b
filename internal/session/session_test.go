package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/tjamescouch/personas/internal/manifest"
	"github.com/tjamescouch/personas/internal/pose"
	"github.com/tjamescouch/personas/internal/signal"
	"github.com/tjamescouch/personas/internal/viseme"
)

// testConfig pins every source of nondeterminism: seeded rand and an
// ambient blink countdown far beyond any simulated test duration.
func testConfig() Config {
	blink := viseme.DefaultConfig()
	blink.AmbientMinMs = 1 << 40
	blink.AmbientMaxMs = 1 << 40
	return Config{
		FadeSeconds: 0.5,
		HoldSeconds: 2.0,
		Blink:       blink,
		Rand:        rand.New(rand.NewSource(1)),
	}
}

func sigEvent(code string, c, u float64, seq uint64) signal.Event {
	return signal.Event{Signal: &signal.Signal{Code: code, Confidence: c, Uncertainty: u, Sequence: seq}}
}

func poseEvent(name string, weights map[string]float64) signal.Event {
	return signal.Event{Pose: &signal.PoseCommand{Kind: signal.KindPose, Name: name, ChannelWeights: weights}}
}

func TestSignalDrivesSmoothedWeights(t *testing.T) {
	s := New("t", testConfig())
	s.Feed(sigEvent("AA", 1, 0, 1))

	const dt = 1.0 / 60
	var prev float64
	for tick := 1; tick <= 3; tick++ {
		w := s.Tick(dt)
		if w["viseme_aa"] <= prev {
			t.Fatalf("tick %d: viseme_aa should rise, got %v then %v", tick, prev, w["viseme_aa"])
		}
		prev = w["viseme_aa"]
		if w[manifest.AmbientChannel] != 1 {
			t.Fatalf("ambient should stay 1 with no pose, got %v", w[manifest.AmbientChannel])
		}
	}

	w := s.Tick(dt)
	if w["viseme_aa"] <= w["content"] {
		t.Fatalf("fast channel %v should lead slow channel %v", w["viseme_aa"], w["content"])
	}
}

// TestPoseOverrideLifecycle feeds a pose command and walks the crossfade:
// the override ramps in over the fade, replaces the smoothed value during
// Holding, and ambient returns to 1 once the machine drains to Idle.
func TestPoseOverrideLifecycle(t *testing.T) {
	s := New("t", testConfig())
	s.Feed(poseEvent("smile", map[string]float64{"content": 2.4}))

	const dt = 0.0625 // exact binary, 8 ticks per fade

	var w map[string]float64
	for tick := 1; tick <= 4; tick++ {
		w = s.Tick(dt)
	}
	// Fade midpoint: smoothstep gives exactly half the authored weight.
	if w["content"] != 1.2 {
		t.Fatalf("midfade content: want 1.2, got %v", w["content"])
	}
	if w[manifest.AmbientChannel] != 0.5 {
		t.Fatalf("midfade ambient: want 0.5, got %v", w[manifest.AmbientChannel])
	}

	for tick := 5; tick <= 8; tick++ {
		w = s.Tick(dt)
	}
	if s.MachineState() != pose.Holding {
		t.Fatalf("after one fade: want Holding, got %v", s.MachineState())
	}
	if w["content"] != 2.4 {
		t.Fatalf("holding content: want authored 2.4, got %v", w["content"])
	}
	if w[manifest.AmbientChannel] != 0 {
		t.Fatalf("holding ambient: want 0, got %v", w[manifest.AmbientChannel])
	}

	// Hold (2.0s = 32 ticks) then fade out (8 ticks).
	for tick := 9; tick <= 48; tick++ {
		w = s.Tick(dt)
	}
	if s.MachineState() != pose.Idle {
		t.Fatalf("after lifecycle: want Idle, got %v", s.MachineState())
	}
	if w[manifest.AmbientChannel] != 1 {
		t.Fatalf("idle ambient: want 1, got %v", w[manifest.AmbientChannel])
	}
	if w["content"] > 0.01 {
		t.Fatalf("content should return to smoothed near-zero, got %v", w["content"])
	}
}

// TestStallDecay stops the signal stream and checks targets decay to the
// neutral face after the stall window.
func TestStallDecay(t *testing.T) {
	s := New("t", testConfig())
	s.Feed(sigEvent("AA", 1, 0, 1))

	const dt = 0.0625
	var w map[string]float64
	for tick := 1; tick <= 31; tick++ { // 1.9375s, still inside the window
		w = s.Tick(dt)
	}
	if w["content"] < 0.95 {
		t.Fatalf("before stall: content should be near target, got %v", w["content"])
	}

	for tick := 32; tick <= 48; tick++ { // crosses 2.0s, then 1s of decay
		w = s.Tick(dt)
	}
	if w["content"] > 0.05 {
		t.Fatalf("stalled content should decay, got %v", w["content"])
	}
	if w["viseme_aa"] != 0 {
		t.Fatalf("stalled mouth should close, got %v", w["viseme_aa"])
	}
	if w[viseme.ChannelNeutral] < 0.95 {
		t.Fatalf("stalled face should go neutral, got %v", w[viseme.ChannelNeutral])
	}
	if w[manifest.AmbientChannel] != 1 {
		t.Fatalf("ambient motion should persist through a stall, got %v", w[manifest.AmbientChannel])
	}
}

func TestNewSessionStartsNeutral(t *testing.T) {
	s := New("t", testConfig())
	w := s.Tick(1.0) // large dt lands targets immediately
	if w[viseme.ChannelNeutral] != 1 {
		t.Fatalf("fresh session should rest on the neutral face, got %v", w[viseme.ChannelNeutral])
	}
	for _, ch := range viseme.MouthChannels() {
		if w[ch] != 0 {
			t.Fatalf("fresh session mouth channel %s should be 0, got %v", ch, w[ch])
		}
	}
}

type captureRenderer struct {
	mu    sync.Mutex
	calls int
	last  map[string]float64
}

func (r *captureRenderer) ApplyWeights(w map[string]float64) {
	r.mu.Lock()
	r.calls++
	r.last = w
	r.mu.Unlock()
}

func (r *captureRenderer) snapshot() (int, map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.last
}

// TestRunLoop exercises the single-goroutine select loop end to end with a
// real ticker: events feed in, the renderer sees ticks, cancellation stops
// the loop.
func TestRunLoop(t *testing.T) {
	cfg := testConfig()
	cfg.TickHz = 200
	s := New("t", cfg)

	events := make(chan signal.Event, 4)
	renderer := &captureRenderer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, events, renderer)
		close(done)
	}()

	events <- sigEvent("AA", 1, 0, 1)
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}

	calls, last := renderer.snapshot()
	if calls < 5 {
		t.Fatalf("renderer calls: want >=5 in 100ms at 200Hz, got %d", calls)
	}
	if last["viseme_aa"] <= 0 {
		t.Fatalf("fed signal should reach rendered weights, got %v", last["viseme_aa"])
	}
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	s := New("t", testConfig())
	events := make(chan signal.Event)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), events, &captureRenderer{})
		close(done)
	}()
	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop when the event stream closed")
	}
}
