// Package pose crossfades between ambient motion and discrete commanded
// expression poses. The machine is tick-driven and pure: Advance and
// Enqueue compute the next state from (state, dt) with no timers and no
// goroutines, so every transition is reproducible in tests with simulated
// time. One Machine belongs to one subscriber's tick loop.
package pose

import "fmt"

// State enumerates the machine's phases.
type State int

const (
	// Idle plays ambient motion only; no command active, queue empty.
	Idle State = iota
	// FadeToIdle eases the outgoing pose 1->0 and ambient 0->1.
	FadeToIdle
	// FadeToTarget eases ambient 1->0 and the incoming pose 0->target.
	FadeToTarget
	// Holding keeps the pose at full weight until the hold expires.
	Holding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FadeToIdle:
		return "fade_to_idle"
	case FadeToTarget:
		return "fade_to_target"
	case Holding:
		return "holding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// DefaultFadeSeconds is the crossfade duration for both fade states.
	DefaultFadeSeconds = 0.5
	// DefaultHoldSeconds is how long a pose is held at full weight.
	DefaultHoldSeconds = 2.0
	// QueueCapacity bounds pending commands; the oldest pending command is
	// discarded to admit a new one.
	QueueCapacity = 3
)

// Command is an accepted pose: a name for diagnostics and the authored
// channel weights. The machine treats Weights as read-only; scaled copies
// are produced per tick.
type Command struct {
	Name    string
	Weights map[string]float64
}

// Output is one tick's blend result. Ambient is the ambient motion scale in
// [0,1]; Weights holds the active command's channels scaled by the blend
// scalar, nil when no command is active.
type Output struct {
	State   State
	Active  string
	Ambient float64
	Weights map[string]float64
}

// Machine runs the pose transition states for one subscriber.
type Machine struct {
	fade float64
	hold float64

	state   State
	elapsed float64
	active  *Command
	queue   []Command
	dropped uint64
}

// NewMachine returns a Machine in Idle. Non-positive durations select the
// defaults.
func NewMachine(fadeSeconds, holdSeconds float64) *Machine {
	if fadeSeconds <= 0 {
		fadeSeconds = DefaultFadeSeconds
	}
	if holdSeconds <= 0 {
		holdSeconds = DefaultHoldSeconds
	}
	return &Machine{
		fade:  fadeSeconds,
		hold:  holdSeconds,
		queue: make([]Command, 0, QueueCapacity),
	}
}

// Enqueue accepts a command. From Idle it starts fading in immediately;
// ambient is already the baseline, so no FadeToIdle detour. While a command
// is active the new one waits in the queue, displacing the oldest pending
// command when the queue is full. Never blocks the producer.
func (m *Machine) Enqueue(cmd Command) {
	if m.state == Idle {
		m.active = &cmd
		m.state = FadeToTarget
		m.elapsed = 0
		return
	}
	if len(m.queue) == QueueCapacity {
		copy(m.queue, m.queue[1:])
		m.queue[len(m.queue)-1] = cmd
		m.dropped++
		return
	}
	m.queue = append(m.queue, cmd)
}

// Advance moves simulated time forward by dt seconds and returns the blend
// output for the resulting state. A dt spanning several phases cascades
// through all of them, carrying the remainder, so irregular tick timing
// never stalls a transition.
func (m *Machine) Advance(dt float64) Output {
	if m.state != Idle && dt > 0 {
		m.elapsed += dt
	}
	for {
		switch m.state {
		case Idle:
			return m.output()
		case FadeToTarget:
			if m.elapsed < m.fade {
				return m.output()
			}
			m.elapsed -= m.fade
			m.state = Holding
		case Holding:
			if m.elapsed < m.hold {
				return m.output()
			}
			m.elapsed -= m.hold
			m.state = FadeToIdle
		case FadeToIdle:
			if m.elapsed < m.fade {
				return m.output()
			}
			m.elapsed -= m.fade
			if len(m.queue) > 0 {
				cmd := m.queue[0]
				m.queue = m.queue[1:]
				m.active = &cmd
				m.state = FadeToTarget
			} else {
				m.active = nil
				m.elapsed = 0
				m.state = Idle
			}
		}
	}
}

func (m *Machine) output() Output {
	out := Output{State: m.state, Ambient: 1}
	switch m.state {
	case FadeToTarget:
		t := smoothstep(m.elapsed / m.fade)
		out.Ambient = 1 - t
		out.Weights = scaled(m.active.Weights, t)
		out.Active = m.active.Name
	case Holding:
		out.Ambient = 0
		out.Weights = scaled(m.active.Weights, 1)
		out.Active = m.active.Name
	case FadeToIdle:
		t := smoothstep(m.elapsed / m.fade)
		out.Ambient = t
		out.Weights = scaled(m.active.Weights, 1-t)
		out.Active = m.active.Name
	}
	return out
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// QueueLen returns the number of pending commands.
func (m *Machine) QueueLen() int { return len(m.queue) }

// Dropped returns how many pending commands were displaced by overflow.
func (m *Machine) Dropped() uint64 { return m.dropped }

// smoothstep is the eased blend curve t^2(3-2t) on [0,1].
func smoothstep(t float64) float64 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

func scaled(weights map[string]float64, k float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for ch, w := range weights {
		out[ch] = w * k
	}
	return out
}
