// SPDX-License-Identifier: MIT
package graph

import (
	"fmt"
	"sync"

	"soundhub/internal/analysis"
	"soundhub/pkg/bitint"
)

// Analyser taps the signal flowing into it and reports its frequency
// spectrum on demand. It passes its input through unchanged and is rendered
// every quantum while attached, even with no outputs.
type Analyser struct {
	nodeBase

	mu       sync.Mutex
	spectrum *analysis.Spectrum
	ring     []float32 // Mono history, fftSize long.
	ringAt   int
	ordered  []float32
	attached bool
}

// NewAnalyser creates an analyser with the given FFT size and a Blackman window.
func (c *Context) NewAnalyser(fftSize int) (*Analyser, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("analyser fft size must be a power of 2, got %d", fftSize)
	}
	spectrum, err := analysis.NewSpectrum(fftSize, analysis.Blackman)
	if err != nil {
		return nil, err
	}
	a := &Analyser{
		spectrum: spectrum,
		ring:     make([]float32, fftSize),
		ordered:  make([]float32, fftSize),
		attached: true,
	}
	a.init(c, a)
	c.addTap(a)
	return a, nil
}

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return len(a.ring) }

// FrequencyBinCount returns the number of bins FloatFrequencyData fills.
func (a *Analyser) FrequencyBinCount() int { return a.spectrum.BinCount() }

// SetSmoothing sets the smoothing time constant in [0, 1].
func (a *Analyser) SetSmoothing(tau float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spectrum.SetSmoothing(tau)
}

// FloatFrequencyData analyses the latest fftSize samples and writes the
// smoothed per-bin decibels into dst.
func (a *Analyser) FloatFrequencyData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := copy(a.ordered, a.ring[a.ringAt:])
	copy(a.ordered[n:], a.ring[:a.ringAt])
	a.spectrum.Process(a.ordered)
	a.spectrum.Decibels(dst)
}

// Detach disconnects every input and stops the analyser being rendered.
func (a *Analyser) Detach() {
	a.mu.Lock()
	if !a.attached {
		a.mu.Unlock()
		return
	}
	a.attached = false
	a.mu.Unlock()

	a.ctx.removeTap(a)
	a.ctx.mu.Lock()
	inputs := append([]Node(nil), a.inputs...)
	a.ctx.mu.Unlock()
	for _, in := range inputs {
		in.DisconnectFrom(a)
	}
}

func (a *Analyser) process(in, out []float32, _ float64) {
	copy(out, in)
	a.mu.Lock()
	for i := 0; i < Quantum; i++ {
		a.ring[a.ringAt] = (in[i*Channels] + in[i*Channels+1]) / 2
		a.ringAt = (a.ringAt + 1) % len(a.ring)
	}
	a.mu.Unlock()
}
