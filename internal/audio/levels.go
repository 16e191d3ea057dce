// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"time"

	"soundhub/internal/analysis"
	"soundhub/internal/graph"
)

// LevelCallback receives the peak decibel value of a stream's spectrum and
// the spectrum itself. The slice is reused between calls.
type LevelCallback func(maxDecibels float64, spectrum []float32)

type levelReport struct {
	source   *graph.MediaStreamSource
	node     *graph.Analyser
	data     []float32
	every    int // Native ticks between callbacks.
	ticks    int
	callback LevelCallback
}

func (r *levelReport) detach() {
	r.source.Disconnect()
	r.node.Detach()
}

// StartLevelReports analyses an external stream and calls callback every
// interval, which is rounded up to a multiple of the native level tick.
// Reports for an id already registered are replaced. It returns false when
// the stream carries no audio or audio is still locked.
func (h *Helper) StartLevelReports(id string, stream graph.Stream, callback LevelCallback, interval time.Duration, smoothing float64) bool {
	if stream == nil || stream.AudioTracks() == 0 {
		return false
	}
	h.levelsMu.Lock()
	defer h.levelsMu.Unlock()
	if h.levelCtx == nil {
		return false
	}

	native := h.cfg.LevelInterval
	every := max(1, int(math.Ceil(float64(interval)/float64(native))))
	if interval > 0 && time.Duration(every)*native != interval {
		h.log.Warnf("level interval %v for %s is not a multiple of %v; using %v",
			interval, id, native, time.Duration(every)*native)
	}

	node, err := h.levelCtx.NewAnalyser(analysis.TransformSize)
	if err != nil {
		h.log.Errorf("level analyser for %s: %v", id, err)
		return false
	}
	if err := node.SetSmoothing(smoothing); err != nil {
		h.log.Warnf("level smoothing for %s: %v", id, err)
	}
	source := h.levelCtx.NewMediaStreamSource(stream)
	source.Connect(node)

	if old, ok := h.levels[id]; ok {
		old.detach()
	}
	h.levels[id] = &levelReport{
		source:   source,
		node:     node,
		data:     make([]float32, node.FrequencyBinCount()),
		every:    every,
		callback: callback,
	}
	if h.levelStop == nil {
		h.levelStop = make(chan struct{})
		go h.levelLoop(h.levelStop)
	}
	return true
}

// StopLevelReports removes the reports registered under id. The shared
// timer stops with the last registration.
func (h *Helper) StopLevelReports(id string) {
	h.levelsMu.Lock()
	defer h.levelsMu.Unlock()
	if r, ok := h.levels[id]; ok {
		r.detach()
		delete(h.levels, id)
	}
	if len(h.levels) == 0 {
		h.stopLevelTickerLocked()
	}
}

func (h *Helper) stopLevelTickerLocked() {
	if h.levelStop != nil {
		close(h.levelStop)
		h.levelStop = nil
	}
}

func (h *Helper) levelLoop(stop <-chan struct{}) {
	ticker := h.clock.NewTicker(h.cfg.LevelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			h.emitLevels()
		}
	}
}

// emitLevels advances the level context by one native tick and invokes the
// callbacks that are due.
func (h *Helper) emitLevels() {
	type due struct {
		cb   LevelCallback
		peak float64
		data []float32
	}
	var calls []due

	h.levelsMu.Lock()
	if h.levelCtx == nil || len(h.levels) == 0 {
		h.levelsMu.Unlock()
		return
	}
	h.levelCtx.RenderSeconds(h.cfg.LevelInterval.Seconds())
	for _, r := range h.levels {
		r.ticks++
		if r.ticks < r.every {
			continue
		}
		r.ticks = 0
		r.node.FloatFrequencyData(r.data)
		peak := math.Inf(-1)
		for _, v := range r.data {
			peak = max(peak, float64(v))
		}
		calls = append(calls, due{r.callback, peak, r.data})
	}
	h.levelsMu.Unlock()

	for _, c := range calls {
		c.cb(c.peak, c.data)
	}
}
