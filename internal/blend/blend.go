// Package blend converges currently-applied channel weights toward their
// targets. Mouth-shape channels approach fast so lip movement tracks the
// token stream; expression channels approach slowly so mood reads as
// organic. The pose machine's output is composited over the smoothed values
// as an exclusive override, never mixed into smoother state.
package blend

import (
	"math"
	"strings"
)

const (
	// FastRate is the convergence rate for viseme and blink channels (1/s).
	FastRate = 18.0
	// SlowRate is the convergence rate for expression and body channels (1/s).
	SlowRate = 6.0
	// MaxWeight bounds any composited channel weight. Authored pose weights
	// may reach it to dominate a shared channel.
	MaxWeight = 3.0
)

// Smoother holds per-channel current values and targets. Each channel is
// classified once, lexically, when first seen; the classification never
// changes afterward. Not safe for concurrent use: one Smoother belongs to
// one subscriber's tick loop.
type Smoother struct {
	rates   map[string]float64
	current map[string]float64
	targets map[string]float64
}

func NewSmoother() *Smoother {
	return &Smoother{
		rates:   make(map[string]float64),
		current: make(map[string]float64),
		targets: make(map[string]float64),
	}
}

// classifyRate assigns a channel's convergence rate from its name alone.
func classifyRate(name string) float64 {
	if strings.HasPrefix(name, "viseme_") || name == "blink" {
		return FastRate
	}
	return SlowRate
}

// SetTargets merges the given table into the target set. Channels absent
// from the table keep their previous targets.
func (s *Smoother) SetTargets(targets map[string]float64) {
	for ch, v := range targets {
		if _, seen := s.rates[ch]; !seen {
			s.rates[ch] = classifyRate(ch)
		}
		s.targets[ch] = v
	}
}

// Step advances every channel by dt seconds:
//
//	current += (target - current) * min(1, rate*dt)
//
// The min keeps a long dt from overshooting; with rate*dt >= 1 the channel
// lands exactly on its target.
func (s *Smoother) Step(dt float64) {
	for ch, target := range s.targets {
		k := s.rates[ch] * dt
		if k > 1 {
			k = 1
		}
		cur := s.current[ch]
		s.current[ch] = cur + (target-cur)*k
	}
}

// Value returns one channel's current smoothed weight.
func (s *Smoother) Value(ch string) float64 { return s.current[ch] }

// Values returns a copy of the current smoothed table.
func (s *Smoother) Values() map[string]float64 {
	out := make(map[string]float64, len(s.current))
	for ch, v := range s.current {
		out[ch] = v
	}
	return out
}

// Compose merges a pose-machine override over the smoothed table: channels
// the override names replace their smoothed values, everything else passes
// through. Every output weight is clamped to [0, MaxWeight] and non-finite
// values collapse to 0, so nothing the renderer sees can be negative, NaN
// or unbounded.
func Compose(smoothed, override map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(smoothed)+len(override))
	for ch, v := range smoothed {
		out[ch] = clampWeight(v)
	}
	for ch, v := range override {
		out[ch] = clampWeight(v)
	}
	return out
}

func clampWeight(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > MaxWeight {
		return MaxWeight
	}
	return v
}
