// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordChannels = 2

// Recorder writes interleaved stereo float blocks to a PCM WAV file.
type Recorder struct {
	sampleRate int
	bitDepth   int

	recording atomic.Bool

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
}

// NewRecorder returns an idle recorder. Bit depths other than 16, 24 and 32
// fall back to 16.
func NewRecorder(sampleRate, bitDepth int) *Recorder {
	switch bitDepth {
	case 16, 24, 32:
	default:
		bitDepth = 16
	}
	return &Recorder{sampleRate: sampleRate, bitDepth: bitDepth}
}

// Start creates filename and begins accepting Writes.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording.Load() {
		return errors.New("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.file = file
	r.encoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, recordChannels, 1)
	r.buf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: recordChannels,
			SampleRate:  r.sampleRate,
		},
		SourceBitDepth: r.bitDepth,
	}
	r.recording.Store(true)
	return nil
}

// Recording reports whether Start succeeded and Stop has not been called.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// Write encodes samples, clamped to [-1, 1]. It is a no-op when idle.
func (r *Recorder) Write(samples []float32) error {
	if !r.recording.Load() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return nil
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	scale := float64(int64(1)<<(r.bitDepth-1) - 1)
	for i, v := range samples {
		f := math.Max(-1, math.Min(1, float64(v)))
		r.buf.Data[i] = int(math.Round(f * scale))
	}
	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// Stop finalises the WAV header and closes the file.
func (r *Recorder) Stop() error {
	if !r.recording.Swap(false) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.encoder != nil {
		err = r.encoder.Close()
		r.encoder = nil
	}
	if r.file != nil {
		err = errors.Join(err, r.file.Close())
		r.file = nil
	}
	return err
}
