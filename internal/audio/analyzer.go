// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"time"

	"soundhub/internal/analysis"
	"soundhub/internal/graph"
)

const bandCount = 4

// analyzer is the band analysis state of one active channel.
type analyzer struct {
	node      *graph.Analyser
	data      []float32
	lastUsed  time.Time
	keepAlive bool
	raw       [bandCount]float64
	levels    [bandCount]float64
}

func newAnalyzer(node *graph.Analyser, now time.Time, keepAlive bool) *analyzer {
	a := &analyzer{
		node:      node,
		data:      make([]float32, node.FrequencyBinCount()),
		lastUsed:  now,
		keepAlive: keepAlive,
	}
	for i := range a.raw {
		a.raw[i] = math.Inf(-1)
	}
	return a
}

// AnalyzerOptions configure EnableAnalyzer.
type AnalyzerOptions struct {
	// KeepAlive stops the analyser being disabled when it goes unqueried.
	KeepAlive bool
}

// BandOptions configure band level queries.
type BandOptions struct {
	// IgnoreVolume removes the channel volume from the measured level.
	IgnoreVolume bool
}

// EnableAnalyzer taps the channel's master gain for band analysis and
// starts the shared analysis loop. It does nothing if the channel is
// already analysed or not yet open.
func (h *Helper) EnableAnalyzer(channel string, o AnalyzerOptions) {
	c, ok := h.channels[channel]
	if !ok {
		return
	}
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()
	h.enableLocked(c, o.KeepAlive)
}

func (h *Helper) enableLocked(c *Channel, keepAlive bool) bool {
	if c.analyzer != nil {
		return true
	}
	ctx, master := c.Context(), c.Input()
	if ctx == nil {
		return false
	}
	node, err := ctx.NewAnalyser(analysis.TransformSize)
	if err != nil {
		h.log.Errorf("analyser for %s: %v", c.name, err)
		return false
	}
	master.Connect(node)
	c.analyzer = newAnalyzer(node, h.clock.Now(), keepAlive)
	h.log.Debugf("analyser enabled on %s", c.name)

	if h.analysisStop == nil {
		h.analysisStop = make(chan struct{})
		go h.analysisLoop(h.analysisStop)
	}
	return true
}

// DisableAnalyzer detaches the channel's analyser and resets its levels.
func (h *Helper) DisableAnalyzer(channel string) {
	c, ok := h.channels[channel]
	if !ok {
		return
	}
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()
	h.disableLocked(c)
	if !h.anyAnalyzerLocked() {
		h.stopAnalysisLoopLocked()
	}
}

func (h *Helper) disableLocked(c *Channel) {
	if c.analyzer == nil {
		return
	}
	c.analyzer.node.Detach()
	c.analyzer = nil
	h.log.Debugf("analyser disabled on %s", c.name)
}

func (h *Helper) anyAnalyzerLocked() bool {
	for _, c := range h.channels {
		if c.analyzer != nil {
			return true
		}
	}
	return false
}

// AnalyzerActive reports whether the channel is being analysed.
func (h *Helper) AnalyzerActive(channel string) bool {
	c, ok := h.channels[channel]
	if !ok {
		return false
	}
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()
	return c.analyzer != nil
}

// GetBandLevel returns the normalised level of band on channel, enabling
// its analyser if needed. With IgnoreVolume the channel volume is removed
// from the measurement; a silent channel then reads 0.
func (h *Helper) GetBandLevel(channel string, band analysis.Band, o BandOptions) float64 {
	c, ok := h.channels[channel]
	if !ok || band < 0 || band >= bandCount {
		return 0
	}
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()
	if !h.enableLocked(c, false) {
		return 0
	}
	a := c.analyzer
	a.lastUsed = h.clock.Now()
	if !o.IgnoreVolume {
		return a.levels[band]
	}
	gain := c.Volume()
	if gain <= 0 {
		return 0
	}
	return analysis.Normalize(a.raw[band] - analysis.DecibelsFromGain(gain))
}

// GetMaxBandLevel returns the loudest GetBandLevel across all channels.
func (h *Helper) GetMaxBandLevel(band analysis.Band, o BandOptions) float64 {
	var level float64
	for _, name := range ChannelNames {
		level = max(level, h.GetBandLevel(name, band, o))
	}
	return level
}

func (h *Helper) analysisLoop(stop <-chan struct{}) {
	ticker := h.clock.NewTicker(h.cfg.AnalysisInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !h.analyzeFrame() {
				return
			}
		}
	}
}

// analyzeFrame measures every active channel once, disabling analysers
// that went unqueried past the timeout. It reports whether any remain;
// when none do the loop is stopped.
func (h *Helper) analyzeFrame() bool {
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()

	now := h.clock.Now()
	for _, name := range ChannelNames {
		c := h.channels[name]
		a := c.analyzer
		if a == nil {
			continue
		}
		if !a.keepAlive && now.Sub(a.lastUsed) > h.cfg.AnalysisTimeout {
			h.disableLocked(c)
			continue
		}
		a.node.FloatFrequencyData(a.data)
		sr := c.Context().SampleRate()
		for _, band := range analysis.Bands() {
			db := analysis.BandDecibels(a.data, band, sr)
			a.raw[band] = db
			a.levels[band] = analysis.Normalize(db)
		}
	}
	if h.anyAnalyzerLocked() {
		return true
	}
	h.stopAnalysisLoopLocked()
	return false
}

func (h *Helper) stopAnalysisLoop() {
	h.analysisMu.Lock()
	defer h.analysisMu.Unlock()
	for _, c := range h.channels {
		h.disableLocked(c)
	}
	h.stopAnalysisLoopLocked()
}

func (h *Helper) stopAnalysisLoopLocked() {
	if h.analysisStop != nil {
		close(h.analysisStop)
		h.analysisStop = nil
	}
}

// Levels appends the band levels of every channel to dst, channel-major in
// ChannelNames order and band order within a channel.
func (h *Helper) Levels(dst []float32) []float32 {
	for _, name := range ChannelNames {
		for _, band := range analysis.Bands() {
			dst = append(dst, float32(h.GetBandLevel(name, band, BandOptions{})))
		}
	}
	return dst
}
