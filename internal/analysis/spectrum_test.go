// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"soundhub/pkg/utils"
)

const testSampleRate = 48000.0

// binSine returns a mono sine centred on FFT bin k.
func binSine(size, k int, amplitude float64) []float32 {
	freq := FrequencyForBin(k, testSampleRate, size)
	return left(utils.GenerateSineWave(size, testSampleRate, freq, amplitude))
}

// left takes the first channel of interleaved stereo.
func left(stereo []float32) []float32 {
	out := make([]float32, len(stereo)/2)
	for i := range out {
		out[i] = stereo[2*i]
	}
	return out
}

func TestNewSpectrumValidation(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{32, false},
		{512, false},
		{2048, false},
		{32768, false},
		{65536, true},
		{500, true},
		{16, true},
		{0, true},
	}

	for _, tt := range tests {
		_, err := NewSpectrum(tt.size, Blackman)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSpectrum(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
		}
	}
}

func TestSpectrumPeakAndLevel(t *testing.T) {
	s, err := NewSpectrum(TransformSize, Blackman)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetSmoothing(0); err != nil {
		t.Fatal(err)
	}

	s.Process(binSine(TransformSize, 20, 1))
	db := make([]float32, s.BinCount())
	s.Decibels(db)

	bin := utils.FindPeakBin(db, 0, len(db)-1)
	level := db[bin]
	if bin != 20 {
		t.Errorf("peak bin = %d, want 20", bin)
	}
	// Blackman coherent gain is ~0.42, so a unit sine reads ~20·log10(0.21).
	if level < -16 || level > -11 {
		t.Errorf("peak level = %.2f dB, want about -13.6", level)
	}
}

func TestSpectrumComplexWave(t *testing.T) {
	s, err := NewSpectrum(TransformSize, Blackman)
	if err != nil {
		t.Fatal(err)
	}
	s.SetSmoothing(0)
	s.Process(left(utils.GenerateComplexWave(TransformSize, testSampleRate)))
	db := make([]float32, s.BinCount())
	s.Decibels(db)

	// The 440Hz fundamental lies nearest bin 5 at 48kHz / 512.
	if bin := utils.FindPeakBin(db, 0, len(db)-1); bin != 5 {
		t.Errorf("peak bin = %d, want 5", bin)
	}
	// The 880Hz harmonic peaks above its neighbours.
	if bin := utils.FindPeakBin(db, 8, 11); bin != 9 {
		t.Errorf("second harmonic peak bin = %d, want 9", bin)
	}

	mid := BandDecibels(db, Mid, testSampleRate)
	treble := BandDecibels(db, Treble, testSampleRate)
	if mid < treble+20 {
		t.Errorf("mid = %.1f dB, treble = %.1f dB, want the harmonics to lift mid well above treble", mid, treble)
	}
	if Normalize(mid) <= Normalize(treble) {
		t.Errorf("normalised mid %v not above treble %v", Normalize(mid), Normalize(treble))
	}
}

func TestSpectrumSmoothing(t *testing.T) {
	raw, _ := NewSpectrum(TransformSize, Blackman)
	raw.SetSmoothing(0)
	smooth, _ := NewSpectrum(TransformSize, Blackman)

	block := binSine(TransformSize, 40, 0.5)
	raw.Process(block)
	smooth.Process(block)

	a := make([]float32, raw.BinCount())
	b := make([]float32, smooth.BinCount())
	raw.Decibels(a)
	smooth.Decibels(b)

	// First frame from silence keeps (1-τ) of the magnitude.
	want := float64(a[40]) + 20*math.Log10(1-DefaultSmoothing)
	if math.Abs(float64(b[40])-want) > 0.01 {
		t.Errorf("smoothed level = %.3f, want %.3f", b[40], want)
	}

	smooth.Reset()
	smooth.Decibels(b)
	if !math.IsInf(float64(b[40]), -1) {
		t.Errorf("after Reset level = %v, want -Inf", b[40])
	}

	if err := smooth.SetSmoothing(1.5); err == nil {
		t.Error("SetSmoothing(1.5) should fail")
	}
}

func TestSpectrumShortBlockIsPadded(t *testing.T) {
	s, _ := NewSpectrum(TransformSize, Hann)
	s.Process(make([]float32, 10))
	db := make([]float32, s.BinCount())
	s.Decibels(db)
	for i, v := range db {
		if !math.IsInf(float64(v), -1) {
			t.Fatalf("bin %d = %v for silent input", i, v)
		}
	}
}

func TestSpectrumProcessAllocations(t *testing.T) {
	s, _ := NewSpectrum(TransformSize, Blackman)
	block := binSine(TransformSize, 10, 0.5)
	db := make([]float32, s.BinCount())

	allocs := testing.AllocsPerRun(100, func() {
		s.Process(block)
		s.Decibels(db)
	})
	if allocs != 0 {
		t.Errorf("Process allocations = %.1f, want 0", allocs)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"blackman", Blackman, false},
		{"Hanning", Hann, false},
		{"nuttall", Nuttall, false},
		{"square", Blackman, true},
	}

	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.name, got, err)
		}
	}
}

func BenchmarkSpectrumProcess(b *testing.B) {
	s, _ := NewSpectrum(TransformSize, Blackman)
	block := binSine(TransformSize, 10, 0.5)
	b.ReportAllocs()
	for b.Loop() {
		s.Process(block)
	}
}
