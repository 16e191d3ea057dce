// SPDX-License-Identifier: MIT

// Package output drives an audio device, or a virtual one, by pulling
// interleaved stereo blocks from a Renderer.
package output

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	applog "soundhub/internal/log"
)

// Channels is the interleaved channel count every sink renders.
const Channels = 2

// Backend names.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendHeadless  = "headless"
)

var (
	ErrUnknownBackend = errors.New("unknown output backend")
	// ErrUnavailable is returned for device backends in headless builds.
	ErrUnavailable = errors.New("output backend not compiled in")
)

// Renderer fills out with interleaved stereo samples.
type Renderer interface {
	Render(out []float32)
}

// Sink is a running output.
type Sink interface {
	Start() error
	Close() error
}

// Config selects and sizes a sink.
type Config struct {
	Backend         string
	SampleRate      float64
	FramesPerBuffer int
	// Device is a portaudio device index; -1 picks the default output.
	Device int
	Clock  clockwork.Clock
}

// Open creates the sink named by cfg.Backend. It is not started.
func Open(r Renderer, cfg Config) (Sink, error) {
	if cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("invalid frames per buffer: %d", cfg.FramesPerBuffer)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %v", cfg.SampleRate)
	}
	switch cfg.Backend {
	case BackendPortAudio, "":
		return newPortAudio(r, cfg)
	case BackendOto:
		return newOto(r, cfg)
	case BackendHeadless:
		clk := cfg.Clock
		if clk == nil {
			clk = clockwork.NewRealClock()
		}
		return NewHeadless(r, cfg.SampleRate, cfg.FramesPerBuffer, clk), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Headless renders at real-time pace and discards the result. It keeps
// the audio contexts advancing on machines without a sound card.
type Headless struct {
	r      Renderer
	clock  clockwork.Clock
	period time.Duration
	buf    []float32
	log    applog.Component

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	blocks int
}

// NewHeadless returns a sink rendering frames per period of the clock.
func NewHeadless(r Renderer, sampleRate float64, frames int, clock clockwork.Clock) *Headless {
	return &Headless{
		r:      r,
		clock:  clock,
		period: time.Duration(float64(frames) / sampleRate * float64(time.Second)),
		buf:    make([]float32, frames*Channels),
		log:    applog.Component("Headless"),
	}
}

// Start begins rendering. Starting twice is a no-op.
func (h *Headless) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(h.stop, h.done)
	h.log.Debugf("rendering %d frames every %v", len(h.buf)/Channels, h.period)
	return nil
}

func (h *Headless) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := h.clock.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			h.r.Render(h.buf)
			h.mu.Lock()
			h.blocks++
			h.mu.Unlock()
		}
	}
}

// Blocks returns how many blocks have been rendered.
func (h *Headless) Blocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blocks
}

// Close stops rendering and waits for the loop to exit.
func (h *Headless) Close() error {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
