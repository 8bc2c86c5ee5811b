package pose

import (
	"math"
	"testing"
)

// dt of 1/16s is exactly representable in binary, so simulated elapsed time
// accumulates without rounding and state boundaries land on exact ticks.
const dt = 0.0625

func cmd(name string, w float64) Command {
	return Command{Name: name, Weights: map[string]float64{"content": w}}
}

// TestIdleEnqueueReachesHoldingInOneFade drives the no-detour path: from
// Idle a new command fades straight in, and Holding begins exactly one fade
// duration after the enqueue.
func TestIdleEnqueueReachesHoldingInOneFade(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("wave", 2.0))
	if m.State() != FadeToTarget {
		t.Fatalf("enqueue from Idle should enter FadeToTarget, got %v", m.State())
	}

	// 8 ticks of 1/16s = 0.5s. Ticks 1..7 stay in the fade.
	for tick := 1; tick <= 7; tick++ {
		out := m.Advance(dt)
		if out.State != FadeToTarget {
			t.Fatalf("tick %d: want FadeToTarget, got %v", tick, out.State)
		}
	}
	out := m.Advance(dt)
	if out.State != Holding {
		t.Fatalf("t=0.5s: want Holding, got %v", out.State)
	}
	if out.Ambient != 0 {
		t.Fatalf("Holding ambient: want 0, got %v", out.Ambient)
	}
	if out.Weights["content"] != 2.0 {
		t.Fatalf("Holding weight: want full 2.0, got %v", out.Weights["content"])
	}
}

// TestFadeEasing checks the smoothstep midpoint: halfway through the fade
// the blend scalar is exactly 0.5 and ambient mirrors it.
func TestFadeEasing(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("wave", 2.0))
	for tick := 1; tick <= 4; tick++ { // 0.25s = fade midpoint
		m.Advance(dt)
	}
	out := m.Advance(0)
	if out.State != FadeToTarget {
		t.Fatalf("want FadeToTarget, got %v", out.State)
	}
	if math.Abs(out.Ambient-0.5) > 1e-12 {
		t.Fatalf("midpoint ambient: want 0.5, got %v", out.Ambient)
	}
	if math.Abs(out.Weights["content"]-1.0) > 1e-12 {
		t.Fatalf("midpoint weight: want 1.0, got %v", out.Weights["content"])
	}
}

// TestFullLifecycle walks one command end to end: fade in (0.5s), hold
// (2.0s), fade out (0.5s), Idle at t=3.0s. It also verifies the hold
// expiry passes through FadeToIdle rather than snapping to Idle.
func TestFullLifecycle(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("wave", 1.0))

	states := make(map[int]State)
	for tick := 1; tick <= 48; tick++ {
		states[tick] = m.Advance(dt).State
	}
	if states[8] != Holding {
		t.Fatalf("tick 8: want Holding, got %v", states[8])
	}
	if states[39] != Holding {
		t.Fatalf("tick 39: want Holding, got %v", states[39])
	}
	if states[40] != FadeToIdle {
		t.Fatalf("tick 40 (hold expiry): want FadeToIdle, got %v", states[40])
	}
	if states[47] != FadeToIdle {
		t.Fatalf("tick 47: want FadeToIdle, got %v", states[47])
	}
	if states[48] != Idle {
		t.Fatalf("tick 48 (t=3.0s): want Idle, got %v", states[48])
	}

	out := m.Advance(dt)
	if out.Ambient != 1 || out.Weights != nil || out.Active != "" {
		t.Fatalf("Idle output: %+v", out)
	}
}

// TestQueueDropOldest enqueues five commands while one is Holding; capacity
// three keeps only the three most recent, and they then play in order.
func TestQueueDropOldest(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("c0", 1.0))
	for tick := 1; tick <= 8; tick++ {
		m.Advance(dt)
	}
	if m.State() != Holding {
		t.Fatalf("setup: want Holding, got %v", m.State())
	}

	for _, name := range []string{"q1", "q2", "q3", "q4", "q5"} {
		m.Enqueue(cmd(name, 1.0))
	}
	if m.QueueLen() != QueueCapacity {
		t.Fatalf("queue length: want %d, got %d", QueueCapacity, m.QueueLen())
	}
	if m.Dropped() != 2 {
		t.Fatalf("dropped: want 2, got %d", m.Dropped())
	}

	// Play out; each FadeToIdle completion should pull the next survivor.
	var order []string
	last := ""
	for tick := 0; tick < 4000 && m.State() != Idle; tick++ {
		out := m.Advance(dt)
		if out.Active != "" && out.Active != last {
			order = append(order, out.Active)
			last = out.Active
		}
	}
	if m.State() != Idle {
		t.Fatalf("machine never drained to Idle")
	}
	want := []string{"c0", "q3", "q4", "q5"}
	if len(order) != len(want) {
		t.Fatalf("active order: want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("active order: want %v, got %v", want, order)
		}
	}
	if m.QueueLen() != 0 {
		t.Fatalf("queue should be empty, got %d", m.QueueLen())
	}
}

// TestEnqueueDuringFadeOut verifies a command arriving while the previous
// one fades out is picked up at fade completion without an Idle detour.
func TestEnqueueDuringFadeOut(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("first", 1.0))
	for tick := 1; tick <= 41; tick++ { // into FadeToIdle
		m.Advance(dt)
	}
	if m.State() != FadeToIdle {
		t.Fatalf("setup: want FadeToIdle, got %v", m.State())
	}
	m.Enqueue(cmd("second", 1.0))

	sawIdle := false
	for tick := 0; tick < 16; tick++ {
		out := m.Advance(dt)
		if out.State == Idle {
			sawIdle = true
		}
		if out.Active == "second" {
			if sawIdle {
				t.Fatalf("reached second via Idle")
			}
			if out.State != FadeToTarget {
				t.Fatalf("second should start in FadeToTarget, got %v", out.State)
			}
			return
		}
	}
	t.Fatalf("second command never became active")
}

// TestLargeDtCascades runs one Advance spanning fade+hold+fade; the machine
// passes through every phase and lands in Idle with the remainder consumed.
func TestLargeDtCascades(t *testing.T) {
	m := NewMachine(0.5, 2.0)
	m.Enqueue(cmd("wave", 1.0))
	out := m.Advance(3.0)
	if out.State != Idle || out.Ambient != 1 {
		t.Fatalf("want Idle with ambient 1, got %+v", out)
	}
}

func TestSmoothstep(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{0.25, 0.15625},
		{0.5, 0.5},
		{1, 1},
		{-1, 0},
		{2, 1},
	}
	for _, tc := range cases {
		if got := smoothstep(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("smoothstep(%v): want %v, got %v", tc.in, tc.want, got)
		}
	}
}
