// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"soundhub/pkg/bitint"
)

// DefaultSmoothing is the time constant applied between consecutive frames.
const DefaultSmoothing = 0.8

// Transform sizes run from 32 to 32768.
const (
	minSizeLog2 = 5
	maxSizeLog2 = 15
)

// Spectrum turns blocks of time-domain samples into smoothed per-bin
// magnitudes in decibels. Magnitudes are |X[k]|/N, blended with the previous
// frame by the smoothing constant, then converted with 20·log10.
//
// Spectrum is not safe for concurrent use; the owning analyser serialises it.
type Spectrum struct {
	fftCalculator *fourier.FFT
	size          int
	smoothing     float64

	input    []float64    // Windowed input signal.
	coeffs   []complex128 // FFT complex results.
	window   []float64    // Pre-calculated window coefficients.
	smoothed []float64    // Smoothed linear magnitudes, one per bin.
}

// NewSpectrum creates a Spectrum of the given transform size.
func NewSpectrum(size int, windowType WindowFunc) (*Spectrum, error) {
	if n := bitint.Log2(size); n < minSizeLog2 || n > maxSizeLog2 {
		return nil, fmt.Errorf("fft size must be a power of 2 in [%d, %d], got %d",
			1<<minSizeLog2, 1<<maxSizeLog2, size)
	}
	s := &Spectrum{
		fftCalculator: fourier.NewFFT(size),
		size:          size,
		smoothing:     DefaultSmoothing,
		input:         make([]float64, size),
		coeffs:        make([]complex128, size/2+1),
		window:        make([]float64, size),
		smoothed:      make([]float64, size/2),
	}
	WindowCoefficients(s.window, windowType)
	return s, nil
}

// Size returns the transform size.
func (s *Spectrum) Size() int { return s.size }

// BinCount returns the number of frequency bins reported (size/2).
func (s *Spectrum) BinCount() int { return s.size / 2 }

// Smoothing returns the current smoothing time constant.
func (s *Spectrum) Smoothing() float64 { return s.smoothing }

// SetSmoothing sets the smoothing constant, which must lie in [0, 1].
func (s *Spectrum) SetSmoothing(tau float64) error {
	if tau < 0 || tau > 1 || math.IsNaN(tau) {
		return fmt.Errorf("smoothing must be in [0, 1], got %v", tau)
	}
	s.smoothing = tau
	return nil
}

// Process analyses the most recent size samples of block. Shorter blocks are
// zero-padded at the front.
func (s *Spectrum) Process(block []float32) {
	pad := s.size - len(block)
	if pad < 0 {
		block = block[-pad:]
		pad = 0
	}
	for i := range s.size {
		if i < pad {
			s.input[i] = 0
			continue
		}
		s.input[i] = float64(block[i-pad]) * s.window[i]
	}

	s.fftCalculator.Coefficients(s.coeffs, s.input)

	tau := s.smoothing
	scale := 1 / float64(s.size)
	for k := range s.smoothed {
		mag := cmplx.Abs(s.coeffs[k]) * scale
		v := tau*s.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		s.smoothed[k] = v
	}
}

// Decibels copies the smoothed spectrum, in dB, into dst. Silent bins are -Inf.
func (s *Spectrum) Decibels(dst []float32) {
	n := min(len(dst), len(s.smoothed))
	for k := range n {
		dst[k] = float32(20 * math.Log10(s.smoothed[k]))
	}
}

// Reset clears the smoothing history.
func (s *Spectrum) Reset() {
	clear(s.smoothed)
}

// FrequencyForBin returns the frequency in Hz at the start of bin k.
func FrequencyForBin(k int, sampleRate float64, size int) float64 {
	return float64(k) * sampleRate / float64(size)
}
