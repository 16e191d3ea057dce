// SPDX-License-Identifier: MIT
package utils

import (
	"encoding/json"
	"math"
	"os"
	"testing"

	"soundhub/internal/transport"
)

const (
	testFrames     = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float32

func TestMain(m *testing.M) {
	testMagnitudes = make([]float32, testFrames)

	// Creates a "hill" with peak at position testFrames/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = float32(math.Exp(-0.01 * math.Pow(float64(i-testFrames/4), 2)))
	}

	os.Exit(m.Run())
}

func TestMockSocket(t *testing.T) {
	m := &MockSocket{}
	var got []string
	m.On("playAudio", func(p json.RawMessage) { got = append(got, string(p)) })

	if err := m.Emit("playAudio", map[string]string{"src": "a.wav"}, transport.EmitOptions{Recipients: []string{"x"}}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatal("Emit should not invoke local handlers")
	}

	emitted := m.Emitted()
	if len(emitted) != 1 || emitted[0].Event != "playAudio" || string(emitted[0].Payload) != `{"src":"a.wav"}` {
		t.Fatalf("Emitted() = %+v", emitted)
	}
	if len(emitted[0].Opts.Recipients) != 1 {
		t.Errorf("recipients not recorded: %+v", emitted[0].Opts)
	}

	if n := m.Deliver("playAudio", map[string]string{"src": "b.wav"}); n != 1 {
		t.Fatalf("Deliver() = %d, want 1", n)
	}
	if got[0] != `{"src":"b.wav"}` {
		t.Errorf("handler got %s", got[0])
	}
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.frames, tt.sampleRate)

			if len(result) != tt.frames*2 {
				t.Errorf("GenerateComplexWave() len = %d, want %d", len(result), tt.frames*2)
			}

			hasNonZero := false
			for _, v := range result {
				if v > 1 || v < -1 {
					t.Fatalf("sample %f outside [-1, 1]", v)
				}
				if v != 0 {
					hasNonZero = true
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	wave := GenerateSineWave(testFrames, testSampleRate, testFrequency, 0.5)

	var peak float32
	for i := 0; i < len(wave); i += 2 {
		if wave[i] != wave[i+1] {
			t.Fatalf("frame %d channels differ", i/2)
		}
		if v := float32(math.Abs(float64(wave[i]))); v > peak {
			peak = v
		}
	}
	if peak > 0.5 || peak < 0.49 {
		t.Errorf("peak amplitude = %f, want ~0.5", peak)
	}

	// A quarter period of 440Hz at 44.1kHz is ~25 frames.
	if wave[50] < 0.49 {
		t.Errorf("frame 25 = %f, want near the positive peak", wave[50])
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		data     []float32
		start    int
		end      int
		expected int
	}{
		{"Hill", testMagnitudes, 0, testFrames - 1, testFrames / 4},
		{"Window excludes peak", testMagnitudes, testFrames / 2, testFrames - 1, testFrames / 2},
		{"Negative start clamps", []float32{3, 1, 2}, -5, 2, 0},
		{"End beyond length clamps", []float32{1, 2, 9}, 0, 10, 2},
		{"Empty", nil, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.data, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		FindPeakBin(testMagnitudes, 0, testFrames-1)
	}
}
