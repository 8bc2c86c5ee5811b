// Package viseme turns one telemetry signal into a table of animation
// channel target weights: exactly one mouth shape from the phoneme code, a
// continuous expression vector from confidence/uncertainty, and a blink
// impulse scheduled from inter-token timing.
package viseme

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/tjamescouch/personas/internal/signal"
)

// Weights is a channel-name to target-weight table produced by one Map call.
type Weights map[string]float64

// Config holds the blink scheduling parameters.
type Config struct {
	// DelayThresholdMs triggers a blink when the inter-token delay exceeds
	// it (the character "pauses to think").
	DelayThresholdMs uint64
	// CooldownMs is the refractory period after any blink; without it the
	// blink channel would re-fire every tick while a delay persists.
	CooldownMs uint64
	// AmbientMinMs/AmbientMaxMs bound the jittered countdown for ambient
	// blinks during steady token flow.
	AmbientMinMs uint64
	AmbientMaxMs uint64
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		DelayThresholdMs: 400,
		CooldownMs:       800,
		AmbientMinMs:     3000,
		AmbientMaxMs:     6000,
	}
}

// Mapper computes channel weights from signals. The only state it owns is
// the two blink timers, so one Mapper must exist per subscriber; sharing an
// instance would couple the blink rhythm of independent avatars.
type Mapper struct {
	cfg Config
	rng *rand.Rand

	cooldownMs float64
	ambientMs  float64
}

// NewMapper returns a Mapper with the given config. rng drives ambient blink
// jitter; pass a seeded *rand.Rand in tests for determinism, or nil to seed
// from the clock.
func NewMapper(cfg Config, rng *rand.Rand) *Mapper {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Mapper{cfg: cfg, rng: rng}
	m.ambientMs = m.nextAmbient()
	return m
}

// Map computes the target weight table for one signal. elapsedMs is the
// simulated or wall time since the previous Map call and advances the blink
// timers. Unknown phoneme codes select no mouth shape; expression output is
// computed regardless.
func (m *Mapper) Map(sig *signal.Signal, elapsedMs float64) Weights {
	w := make(Weights, len(mouthChannels)+len(expressionChannels)+1)

	for _, ch := range mouthChannels {
		w[ch] = 0
	}
	if ch, ok := phonemeTable[strings.ToUpper(sig.Code)]; ok {
		w[ch] = 1.0
	}

	cN := signal.Clamp01(sig.Confidence)
	uN := signal.Clamp01(sig.Uncertainty)
	w[ChannelContent] = cN * (1 - uN)
	w[ChannelRelaxed] = (1 - cN) * (1 - uN)
	w[ChannelConcerned] = uN * (1 - cN)
	w[ChannelAwkward] = cN * uN
	w[ChannelScared] = math.Max(0, uN-0.5)
	w[ChannelExcited] = math.Max(0, cN-0.5) * (1 - uN)
	w[ChannelNeutral] = (1 - math.Abs(2*cN-1)) * (1 - math.Abs(2*uN-1))
	w[ChannelBrowRaise] = math.Max(0, cN-uN)

	w[ChannelBlink] = m.stepBlink(sig.InterTokenDelayMs, elapsedMs)
	return w
}

// stepBlink advances both blink timers by elapsedMs and reports 1.0 on the
// tick a blink fires, 0 otherwise. The ambient countdown re-randomizes
// whenever it elapses, even when the refractory cooldown suppresses the
// blink itself, so the two timers stay independent.
func (m *Mapper) stepBlink(delayMs uint64, elapsedMs float64) float64 {
	if m.cooldownMs > 0 {
		m.cooldownMs -= elapsedMs
	}
	m.ambientMs -= elapsedMs
	ambientElapsed := m.ambientMs <= 0
	if ambientElapsed {
		m.ambientMs = m.nextAmbient()
	}

	if m.cooldownMs > 0 {
		return 0
	}
	if float64(delayMs) > float64(m.cfg.DelayThresholdMs) || ambientElapsed {
		m.cooldownMs = float64(m.cfg.CooldownMs)
		return 1.0
	}
	return 0
}

func (m *Mapper) nextAmbient() float64 {
	span := m.cfg.AmbientMaxMs - m.cfg.AmbientMinMs
	if span == 0 {
		return float64(m.cfg.AmbientMinMs)
	}
	return float64(m.cfg.AmbientMinMs) + m.rng.Float64()*float64(span)
}
