package viseme

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tjamescouch/personas/internal/signal"
)

// farAmbient pushes the ambient blink countdown out of reach so tests can
// exercise the delay-triggered path in isolation.
func farAmbient() Config {
	cfg := DefaultConfig()
	cfg.AmbientMinMs = 1 << 40
	cfg.AmbientMaxMs = 1 << 40
	return cfg
}

func TestMapSelectsOneMouthChannel(t *testing.T) {
	m := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))
	w := m.Map(&signal.Signal{Code: "AA", Confidence: 0.5, Uncertainty: 0.5}, 16)

	if w["viseme_aa"] != 1.0 {
		t.Fatalf("viseme_aa: want 1.0, got %v", w["viseme_aa"])
	}
	for _, ch := range MouthChannels() {
		if ch == "viseme_aa" {
			continue
		}
		if w[ch] != 0 {
			t.Fatalf("channel %s: want 0, got %v", ch, w[ch])
		}
	}
}

// TestMapUnknownCode verifies unresolvable phoneme codes select no mouth
// shape and never fail; the expression vector is still computed.
func TestMapUnknownCode(t *testing.T) {
	m := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))
	for _, code := range []string{"QQX", "sil", "", "42"} {
		w := m.Map(&signal.Signal{Code: code, Confidence: 0.9, Uncertainty: 0.1}, 16)
		for _, ch := range MouthChannels() {
			if w[ch] != 0 {
				t.Fatalf("code %q: mouth channel %s nonzero: %v", code, ch, w[ch])
			}
		}
		if w[ChannelContent] <= 0 {
			t.Fatalf("code %q: expression vector missing, content=%v", code, w[ChannelContent])
		}
	}
}

func TestExpressionCurves(t *testing.T) {
	m := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))

	approx := func(t *testing.T, got, want float64, ch string) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("%s: want %v, got %v", ch, want, got)
		}
	}

	t.Run("confident and certain", func(t *testing.T) {
		w := m.Map(&signal.Signal{Code: "AA", Confidence: 1, Uncertainty: 0}, 16)
		approx(t, w[ChannelContent], 1, ChannelContent)
		approx(t, w[ChannelRelaxed], 0, ChannelRelaxed)
		approx(t, w[ChannelConcerned], 0, ChannelConcerned)
		approx(t, w[ChannelExcited], 0.5, ChannelExcited)
		approx(t, w[ChannelBrowRaise], 1, ChannelBrowRaise)
		approx(t, w[ChannelNeutral], 0, ChannelNeutral)
	})
	t.Run("mid-range peaks neutral", func(t *testing.T) {
		w := m.Map(&signal.Signal{Code: "AA", Confidence: 0.5, Uncertainty: 0.5}, 16)
		approx(t, w[ChannelNeutral], 1, ChannelNeutral)
		approx(t, w[ChannelAwkward], 0.25, ChannelAwkward)
		approx(t, w[ChannelScared], 0, ChannelScared)
	})
	t.Run("uncertain scales scared", func(t *testing.T) {
		w := m.Map(&signal.Signal{Code: "AA", Confidence: 0.2, Uncertainty: 0.9}, 16)
		approx(t, w[ChannelScared], 0.4, ChannelScared)
		approx(t, w[ChannelConcerned], 0.9*0.8, ChannelConcerned)
	})
	t.Run("out of range inputs clamp", func(t *testing.T) {
		w := m.Map(&signal.Signal{Code: "AA", Confidence: 1.7, Uncertainty: -0.3}, 16)
		approx(t, w[ChannelContent], 1, ChannelContent)
	})
}

// TestBlinkDelayRefractory drives the delay-triggered blink: with the
// inter-token delay held above threshold the blink fires exactly once, stays
// zero through the 800ms cooldown, and re-fires once the cooldown elapses.
func TestBlinkDelayRefractory(t *testing.T) {
	m := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))
	sig := &signal.Signal{Code: "AA", InterTokenDelayMs: 500}

	if w := m.Map(sig, 16); w[ChannelBlink] != 1.0 {
		t.Fatalf("first map should blink, got %v", w[ChannelBlink])
	}

	elapsed := 0.0
	for elapsed+16 < 800 {
		w := m.Map(sig, 16)
		elapsed += 16
		if w[ChannelBlink] != 0 {
			t.Fatalf("blink re-fired %vms into cooldown", elapsed)
		}
	}
	// Next tick crosses the cooldown boundary; delay still above threshold.
	if w := m.Map(sig, 16); w[ChannelBlink] != 1.0 {
		t.Fatalf("blink should re-fire after cooldown, got %v", w[ChannelBlink])
	}
}

// TestBlinkAmbientCountdown pins the ambient countdown to a fixed interval
// and checks it fires on schedule and re-arms even while the cooldown
// suppresses the blink.
func TestBlinkAmbientCountdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AmbientMinMs = 100
	cfg.AmbientMaxMs = 100
	m := NewMapper(cfg, rand.New(rand.NewSource(1)))
	sig := &signal.Signal{Code: "AA"} // no inter-token delay

	var fires []float64
	for tick := 1; tick <= 20; tick++ {
		w := m.Map(sig, 50)
		if w[ChannelBlink] == 1.0 {
			fires = append(fires, float64(tick)*50)
		}
	}
	// Countdown elapses at 100ms (fires), re-arms every 100ms but stays
	// suppressed until the 800ms cooldown runs out at 900ms.
	want := []float64{100, 900}
	if len(fires) != len(want) {
		t.Fatalf("fires: want %v, got %v", want, fires)
	}
	for i := range want {
		if fires[i] != want[i] {
			t.Fatalf("fires: want %v, got %v", want, fires)
		}
	}
}

func TestMapperInstancesIndependent(t *testing.T) {
	a := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))
	b := NewMapper(farAmbient(), rand.New(rand.NewSource(1)))
	sig := &signal.Signal{Code: "AA", InterTokenDelayMs: 500}

	if w := a.Map(sig, 16); w[ChannelBlink] != 1.0 {
		t.Fatalf("a should blink")
	}
	// a is now in cooldown; a fresh mapper must not be.
	if w := b.Map(sig, 16); w[ChannelBlink] != 1.0 {
		t.Fatalf("b's blink state should be independent of a")
	}
	if w := a.Map(sig, 16); w[ChannelBlink] != 0 {
		t.Fatalf("a should be in cooldown")
	}
}
