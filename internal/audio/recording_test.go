// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
)

func TestRecorderWritesClampedPCM(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "mix.wav")
	r := NewRecorder(48000, 16)

	if err := r.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !r.Recording() {
		t.Fatal("Recorder should be recording after Start")
	}
	if err := r.Write([]float32{0.5, -0.5, 2, -2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if r.Recording() {
		t.Error("Recorder should not be recording after Stop")
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if dec.NumChans != 2 || dec.SampleRate != 48000 || dec.BitDepth != 16 {
		t.Fatalf("format = %d ch %d Hz %d bit", dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	want := []int{16384, -16384, 32767, -32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Data), len(want))
	}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], v)
		}
	}
}

func TestRecorderErrorCases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		desc          string
		filename      string
		started       bool
		errorContains string
		expectError   bool
	}{
		{"Already recording", "second.wav", true, "already recording", true},
		{"Invalid path", "/nonexistent/path/file.wav", false, "", true},
		{"Valid path", "valid.wav", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			r := NewRecorder(48000, 24)
			if tt.started {
				if err := r.Start(filepath.Join(dir, "first.wav")); err != nil {
					t.Fatalf("Start: %v", err)
				}
				defer r.Stop()
			}
			filename := tt.filename
			if !filepath.IsAbs(filename) {
				filename = filepath.Join(dir, filename)
			}

			err := r.Start(filename)
			if err == nil && !tt.started {
				_ = r.Stop()
			}
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.errorContains != "" && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestRecorderIdleIsNoop(t *testing.T) {
	r := NewRecorder(48000, 7)
	if r.bitDepth != 16 {
		t.Errorf("bitDepth = %d, want fallback 16", r.bitDepth)
	}
	if err := r.Write([]float32{1}); err != nil {
		t.Errorf("Write while idle: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop while idle: %v", err)
	}
}

func BenchmarkRecorderWrite(b *testing.B) {
	r := NewRecorder(48000, 16)
	if err := r.Start(filepath.Join(b.TempDir(), "bench.wav")); err != nil {
		b.Fatal(err)
	}
	defer r.Stop()
	block := make([]float32, 2*128)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		_ = r.Write(block)
	}
}
