// SPDX-License-Identifier: MIT

// Package analysis holds the frequency-domain maths behind channel analysers:
// the windowed spectrum transform and the fixed band windows with their
// decibel averaging and normalisation.
package analysis

import (
	"fmt"
	"math"
	"strings"
)

const (
	// TransformSize is the analyser FFT size band bin indices are computed against.
	TransformSize = 512
	// MinDecibels normalises to 0.
	MinDecibels = -100.0
	// MaxDecibels normalises to 1.
	MaxDecibels = -30.0
)

// Band names a fixed frequency window.
type Band int

const (
	Bass Band = iota
	Mid
	Treble
	All
)

// FrequencyBand is the name and frequency range of a Band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

var bandRanges = [...]FrequencyBand{
	Bass:   {Name: "bass", LowHz: 20, HighHz: 200},
	Mid:    {Name: "mid", LowHz: 200, HighHz: 2000},
	Treble: {Name: "treble", LowHz: 2000, HighHz: 8000},
	All:    {Name: "all", LowHz: 20, HighHz: 20000},
}

// Bands returns every band in declaration order.
func Bands() []Band {
	return []Band{Bass, Mid, Treble, All}
}

// Range returns the band's frequency window.
func (b Band) Range() FrequencyBand {
	if b < 0 || int(b) >= len(bandRanges) {
		return FrequencyBand{Name: "unknown"}
	}
	return bandRanges[b]
}

func (b Band) String() string { return b.Range().Name }

// ParseBand converts a band name (case-insensitive) to a Band.
func ParseBand(name string) (Band, error) {
	for _, b := range Bands() {
		if strings.EqualFold(name, bandRanges[b].Name) {
			return b, nil
		}
	}
	return All, fmt.Errorf("unknown band %q", name)
}

// BinIndex maps a frequency to its FFT bin: floor(freq / (sampleRate / fftSize)).
func BinIndex(freq, sampleRate float64, fftSize int) int {
	return int(math.Floor(freq / (sampleRate / float64(fftSize))))
}

// BandDecibels averages the decibel values of data over the band's inclusive
// bin range. data holds one value per bin of a TransformSize analyser. It
// returns -Inf when the range holds no bins.
func BandDecibels(data []float32, band Band, sampleRate float64) float64 {
	r := band.Range()
	lo := max(BinIndex(r.LowHz, sampleRate, TransformSize), 0)
	hi := min(BinIndex(r.HighHz, sampleRate, TransformSize), len(data)-1)
	if hi < lo {
		return math.Inf(-1)
	}
	var sum float64
	for _, v := range data[lo : hi+1] {
		sum += float64(v)
	}
	return sum / float64(hi-lo+1)
}

// Normalize maps decibels linearly from [MinDecibels, MaxDecibels] onto [0, 1],
// clamping outside values. NaN maps to 0.
func Normalize(db float64) float64 {
	v := (db - MinDecibels) / (MaxDecibels - MinDecibels)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, 1)
}

// DecibelsFromGain converts a linear gain to decibels: 20·log10(gain).
func DecibelsFromGain(gain float64) float64 {
	return 20 * math.Log10(gain)
}
