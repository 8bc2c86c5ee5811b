package main

import (
	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/manifest"
	"github.com/tjamescouch/personas/internal/session"
)

// previewRenderer logs a compact weight summary once a second. Called only
// from its session's goroutine, so no locking.
type previewRenderer struct {
	every uint64
	ticks uint64
}

func newPreviewRenderer(tickHz int) *previewRenderer {
	if tickHz <= 0 {
		tickHz = session.DefaultTickHz
	}
	return &previewRenderer{every: uint64(tickHz)}
}

func (p *previewRenderer) ApplyWeights(w map[string]float64) {
	p.ticks++
	if p.ticks%p.every != 0 {
		return
	}
	top, val := "", 0.0
	for ch, v := range w {
		if ch == manifest.AmbientChannel {
			continue
		}
		if v > val {
			top, val = ch, v
		}
	}
	logging.Debugw("preview weights",
		"top_channel", top,
		"top_weight", val,
		"ambient", w[manifest.AmbientChannel],
		"channels", len(w),
	)
}
