// Package signal defines the wire-level records exchanged between producers,
// the hub, and subscribers: continuous Signals carrying per-token telemetry
// and discrete PoseCommands requesting expression overrides. Parsing and
// validation live here so malformed payloads are rejected at the boundary
// and never reach the hub or its history.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Event kinds as they appear in the "kind" discriminator field and in the
// subscriber stream's event framing.
const (
	KindSignal = "signal"
	KindPose   = "pose"
)

// Silence is the reserved phoneme code for inter-word gaps. It maps to no
// mouth shape; an empty code is treated the same way.
const Silence = "sil"

var (
	// ErrMalformed marks payloads that fail to parse or validate. Boundary
	// handlers translate it to an explicit rejection (HTTP 400, WS error
	// frame) so producers learn about the drop.
	ErrMalformed = errors.New("malformed event")
)

// Signal is one unit of continuous telemetry derived from a generative text
// source: phoneme code, confidence, uncertainty and inter-token timing.
// Sequence increases monotonically per producer session; gaps are tolerated.
// Immutable once published.
type Signal struct {
	Kind              string  `json:"kind,omitempty"`
	Code              string  `json:"code"`
	Confidence        float64 `json:"confidence"`
	Uncertainty       float64 `json:"uncertainty"`
	InterTokenDelayMs uint64  `json:"interTokenDelayMs"`
	Sequence          uint64  `json:"sequence"`

	// Optional first-derivative telemetry. Carried through the hub for
	// downstream consumers but not folded into the expression curves.
	VelocityConfidence  *float64 `json:"velocityConfidence,omitempty"`
	VelocityUncertainty *float64 `json:"velocityUncertainty,omitempty"`
}

// PoseCommand is a discrete request for a named expression/gesture: a set of
// channel weights crossfaded in by the pose machine, held, and faded out.
// Authored weights may exceed 1.0 (up to 3.0) so a pose can dominate a
// channel the ambient path also drives.
type PoseCommand struct {
	Kind string `json:"kind"`
	// Name is informational (logging, stream display); delivery is driven
	// entirely by ChannelWeights, which the boundary resolves before publish.
	Name           string             `json:"name,omitempty"`
	ChannelWeights map[string]float64 `json:"channelWeights"`
}

// Event is the union delivered through the hub: exactly one of Signal or
// Pose is non-nil.
type Event struct {
	Signal *Signal
	Pose   *PoseCommand
}

// EventKind returns the wire kind of the event ("signal" or "pose").
func (e Event) EventKind() string {
	if e.Pose != nil {
		return KindPose
	}
	return KindSignal
}

// Payload returns the inner record for JSON encoding on the subscriber
// stream.
func (e Event) Payload() interface{} {
	if e.Pose != nil {
		return e.Pose
	}
	return e.Signal
}

// Parse decodes a single JSON event and validates it. The "kind" field
// selects the record type; a missing kind means Signal, which keeps plain
// telemetry producers free of envelope boilerplate.
func Parse(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch probe.Kind {
	case KindPose:
		var pc PoseCommand
		if err := json.Unmarshal(data, &pc); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := pc.Validate(); err != nil {
			return Event{}, err
		}
		return Event{Pose: &pc}, nil
	case "", KindSignal:
		var s Signal
		if err := json.Unmarshal(data, &s); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := s.Validate(); err != nil {
			return Event{}, err
		}
		return Event{Signal: &s}, nil
	default:
		return Event{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, probe.Kind)
	}
}

// ParseBatch decodes either one event or an ordered JSON array of events.
// A single invalid element rejects the whole batch so producers never see a
// partial accept.
func ParseBatch(data []byte) ([]Event, error) {
	trimmed := firstByte(data)
	if trimmed != '[' {
		ev, err := Parse(data)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrMalformed)
	}
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

// Validate checks a Signal for values that would poison downstream weight
// math. Out-of-range confidence/uncertainty is not an error here: the
// mapper clamps to [0,1] before use.
func (s *Signal) Validate() error {
	if s.Kind != "" && s.Kind != KindSignal {
		return fmt.Errorf("%w: kind %q on signal record", ErrMalformed, s.Kind)
	}
	if err := finite("confidence", s.Confidence); err != nil {
		return err
	}
	if err := finite("uncertainty", s.Uncertainty); err != nil {
		return err
	}
	if s.VelocityConfidence != nil {
		if err := finite("velocityConfidence", *s.VelocityConfidence); err != nil {
			return err
		}
	}
	if s.VelocityUncertainty != nil {
		if err := finite("velocityUncertainty", *s.VelocityUncertainty); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a PoseCommand: it must carry at least one channel weight
// and every weight must be finite and non-negative. Channel-name vocabulary
// checks are the boundary's job (the manifest), not this package's.
func (p *PoseCommand) Validate() error {
	if len(p.ChannelWeights) == 0 {
		return fmt.Errorf("%w: pose without channel weights", ErrMalformed)
	}
	for name, w := range p.ChannelWeights {
		if name == "" {
			return fmt.Errorf("%w: empty channel name", ErrMalformed)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: channel %q weight is not finite", ErrMalformed, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: channel %q weight %v is negative", ErrMalformed, name, w)
		}
	}
	return nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not finite", ErrMalformed, field)
	}
	return nil
}

// Clamp01 clamps v into [0,1]. Shared by the mapper and the pose machine's
// easing math.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
