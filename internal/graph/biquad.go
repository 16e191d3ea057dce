// SPDX-License-Identifier: MIT
package graph

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// FilterType selects the biquad response.
type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
)

func (f FilterType) String() string {
	switch f {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return "unknown"
	}
}

// ParseFilterType converts a filter name (case-insensitive) to a FilterType.
func ParseFilterType(name string) (FilterType, error) {
	switch strings.ToLower(name) {
	case "lowpass":
		return Lowpass, nil
	case "highpass":
		return Highpass, nil
	case "bandpass":
		return Bandpass, nil
	default:
		return Lowpass, fmt.Errorf("unknown filter type %q", name)
	}
}

// Biquad is a second-order IIR filter using the RBJ cookbook coefficients.
type Biquad struct {
	nodeBase

	mu        sync.Mutex
	kind      FilterType
	frequency float64
	q         float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [Channels]float64
}

// NewBiquad creates a filter of the given type at frequency Hz with quality q.
func (c *Context) NewBiquad(kind FilterType, frequency, q float64) *Biquad {
	f := &Biquad{}
	f.init(c, f)
	f.Set(kind, frequency, q)
	return f
}

// Set changes the filter response. Frequency is clamped below Nyquist.
func (f *Biquad) Set(kind FilterType, frequency, q float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nyquist := f.ctx.sampleRate / 2
	f.kind = kind
	f.frequency = math.Min(math.Max(frequency, 10), nyquist*0.99)
	f.q = math.Max(q, 1e-4)

	w0 := 2 * math.Pi * f.frequency / f.ctx.sampleRate
	cos, sin := math.Cos(w0), math.Sin(w0)
	alpha := sin / (2 * f.q)

	var b0, b1, b2 float64
	switch kind {
	case Highpass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = (1 + cos) / 2
	case Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = (1 - cos) / 2
	}
	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = -2*cos/a0, (1-alpha)/a0
}

// Frequency returns the cutoff or centre frequency in Hz.
func (f *Biquad) Frequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frequency
}

// Type returns the filter response.
func (f *Biquad) Type() FilterType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

func (f *Biquad) process(in, out []float32, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < Quantum; i++ {
		for ch := 0; ch < Channels; ch++ {
			x := float64(in[i*Channels+ch])
			y := f.b0*x + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
			f.x2[ch], f.x1[ch] = f.x1[ch], x
			f.y2[ch], f.y1[ch] = f.y1[ch], y
			out[i*Channels+ch] = float32(y)
		}
	}
}
