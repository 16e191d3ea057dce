// SPDX-License-Identifier: MIT

// Package utils holds signal generators and in-memory fakes shared by tests.
package utils

import (
	"encoding/json"
	"math"
	"sync"

	"soundhub/internal/transport"
)

// Emitted records one MockSocket.Emit call.
type Emitted struct {
	Event   string
	Payload json.RawMessage
	Opts    transport.EmitOptions
}

// MockSocket implements transport.Socket for testing. Emits are recorded and
// Deliver simulates an inbound event from a peer.
type MockSocket struct {
	mu       sync.Mutex
	emitted  []Emitted
	handlers map[string][]transport.Handler
}

// Emit stores the marshalled payload for later inspection instead of transmitting.
func (m *MockSocket) Emit(event string, payload any, opts transport.EmitOptions) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.emitted = append(m.emitted, Emitted{Event: event, Payload: raw, Opts: opts})
	m.mu.Unlock()
	return nil
}

// On registers h for event.
func (m *MockSocket) On(event string, h transport.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[string][]transport.Handler)
	}
	m.handlers[event] = append(m.handlers[event], h)
}

// Deliver runs the handlers registered for event with payload marshalled to JSON.
func (m *MockSocket) Deliver(event string, payload any) int {
	raw, _ := json.Marshal(payload)
	m.mu.Lock()
	list := m.handlers[event]
	m.mu.Unlock()
	for _, h := range list {
		h(raw)
	}
	return len(list)
}

// Emitted returns a copy of every recorded emit.
func (m *MockSocket) Emitted() []Emitted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Emitted(nil), m.emitted...)
}

// Close is a no-op.
func (m *MockSocket) Close() error { return nil }

var _ transport.Socket = (*MockSocket)(nil)

// GenerateComplexWave returns frames of interleaved stereo float32 holding a
// 440Hz fundamental plus two harmonics.
func GenerateComplexWave(frames int, sampleRate float64) []float32 {
	buffer := make([]float32, frames*2)
	for i := range frames {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		v := float32(signal * 0.9)
		buffer[2*i], buffer[2*i+1] = v, v
	}
	return buffer
}

// GenerateSineWave returns frames of interleaved stereo float32 at frequency
// with the given peak amplitude.
func GenerateSineWave(frames int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, frames*2)
	for i := range frames {
		t := float64(i) / sampleRate
		v := float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
		buffer[2*i], buffer[2*i+1] = v, v
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in data[startBin:endBin+1].
func FindPeakBin(data []float32, startBin, endBin int) int {
	if len(data) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(data) {
		endBin = len(data) - 1
	}

	peakBin := startBin
	peakValue := data[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if data[bin] > peakValue {
			peakValue = data[bin]
			peakBin = bin
		}
	}

	return peakBin
}
