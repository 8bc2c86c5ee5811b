package hub

import "github.com/tjamescouch/personas/internal/signal"

// history is a fixed-capacity ring over the most recent signals, insertion
// order preserved, oldest overwritten when full. Not safe for concurrent
// use; the Hub's mutex guards it.
type history struct {
	buf        []signal.Signal
	head, tail int64
}

func newHistory(capacity int) *history {
	return &history{buf: make([]signal.Signal, capacity)}
}

func (r *history) add(s signal.Signal) {
	r.buf[r.tail%int64(len(r.buf))] = s
	r.tail++
	if r.tail-r.head > int64(len(r.buf)) {
		r.head++
	}
}

// snapshot copies the buffered signals oldest-first.
func (r *history) snapshot() []signal.Signal {
	out := make([]signal.Signal, 0, r.tail-r.head)
	for i := r.head; i < r.tail; i++ {
		out = append(out, r.buf[i%int64(len(r.buf))])
	}
	return out
}

func (r *history) len() int { return int(r.tail - r.head) }
