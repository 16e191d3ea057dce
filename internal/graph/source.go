// SPDX-License-Identifier: MIT
package graph

import (
	"math"
	"sync"
)

// Buffer is decoded audio held in memory as interleaved stereo float32.
type Buffer struct {
	SampleRate float64
	Data       []float32
}

// Frames returns the number of stereo frames.
func (b *Buffer) Frames() int { return len(b.Data) / Channels }

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / b.SampleRate
}

// Bytes returns the memory held by the sample data.
func (b *Buffer) Bytes() int { return len(b.Data) * 4 }

// Source is a node that produces audio once started.
type Source interface {
	Node
	Start(when, offset, duration float64)
	Stop(when float64)
	Halt()
	OnEnded(fn func())
	SetLoop(loop bool, start, end float64)
	Started() bool
	Ended() bool
}

// scheduling holds the start/stop/loop state common to both source kinds.
// Fields are guarded by mu; render reads them under mu as well.
type scheduling struct {
	mu        sync.Mutex
	started   bool
	ended     bool
	startAt   float64
	offset    float64
	maxFrames float64 // Output frames to produce; +Inf when unbounded.
	stopAt    float64
	loop      bool
	loopStart float64
	loopEnd   float64
	onEnded   func()

	produced float64
}

func (s *scheduling) start(when, offset, duration, sampleRate float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	s.started = true
	s.startAt = when
	s.offset = max(offset, 0)
	s.stopAt = math.Inf(1)
	s.maxFrames = math.Inf(1)
	if duration > 0 && !math.IsInf(duration, 1) {
		s.maxFrames = math.Round(duration * sampleRate)
	}
	return true
}

// Stop ends playback at context time when and fires the ended callback.
func (s *scheduling) Stop(when float64) {
	s.mu.Lock()
	s.stopAt = when
	s.mu.Unlock()
}

// Halt ends playback immediately without firing the ended callback.
func (s *scheduling) Halt() {
	s.mu.Lock()
	s.onEnded = nil
	s.ended = true
	s.mu.Unlock()
}

// OnEnded sets the callback run (on its own goroutine) when playback ends.
func (s *scheduling) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// SetLoop configures looping. A window with end <= start loops the whole source.
func (s *scheduling) SetLoop(loop bool, start, end float64) {
	s.mu.Lock()
	s.loop = loop
	s.loopStart = max(start, 0)
	s.loopEnd = max(end, 0)
	s.mu.Unlock()
}

// Started reports whether Start has been called.
func (s *scheduling) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Ended reports whether playback has finished.
func (s *scheduling) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// finish marks the source ended and dispatches the callback. Callers hold mu.
func (s *scheduling) finish() {
	if s.ended {
		return
	}
	s.ended = true
	if fn := s.onEnded; fn != nil {
		s.onEnded = nil
		go fn()
	}
}

// active reports whether the frame at context time t should be produced,
// finishing the source when its stop time or length has been reached.
// Callers hold mu.
func (s *scheduling) active(t float64) bool {
	if !s.started || s.ended || t < s.startAt {
		return false
	}
	if t >= s.stopAt || s.produced >= s.maxFrames {
		s.finish()
		return false
	}
	return true
}

// loopWindow returns the loop bounds in source frames for a source of the
// given length.
func (s *scheduling) loopWindow(rate float64, frames float64) (float64, float64) {
	lo, hi := s.loopStart*rate, s.loopEnd*rate
	if hi <= lo || hi > frames {
		hi = frames
	}
	if lo >= hi {
		lo = 0
	}
	return lo, hi
}

// BufferSource plays a Buffer.
type BufferSource struct {
	nodeBase
	scheduling
	buffer *Buffer
	rate   float64 // Source frames per output frame.
	pos    float64 // Read position in source frames.
}

// NewBufferSource creates a source playing buf.
func (c *Context) NewBufferSource(buf *Buffer) *BufferSource {
	s := &BufferSource{buffer: buf, rate: buf.SampleRate / c.sampleRate}
	s.init(c, s)
	return s
}

// Buffer returns the buffer being played.
func (s *BufferSource) Buffer() *Buffer { return s.buffer }

// Start begins playback at context time when, offset seconds into the
// buffer, for at most duration seconds (<= 0 or +Inf for unbounded).
func (s *BufferSource) Start(when, offset, duration float64) {
	if s.start(when, offset, duration, s.ctx.sampleRate) {
		s.mu.Lock()
		s.pos = s.offset * s.buffer.SampleRate
		s.mu.Unlock()
	}
}

func (s *BufferSource) process(_, out []float32, t float64) {
	clear(out)
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.buffer.Data
	frames := float64(len(data) / Channels)
	dt := 1 / s.ctx.sampleRate
	for i := 0; i < Quantum; i++ {
		if !s.active(t + float64(i)*dt) {
			if s.ended {
				return
			}
			continue
		}
		if frames < 1 {
			s.finish()
			return
		}
		if s.loop {
			lo, hi := s.loopWindow(s.buffer.SampleRate, frames)
			if s.pos >= hi {
				s.pos = lo + math.Mod(s.pos-lo, hi-lo)
			}
		} else if s.pos >= frames {
			s.finish()
			return
		}

		idx := int(s.pos)
		frac := float32(s.pos - float64(idx))
		next := idx + 1
		if next >= int(frames) {
			next = idx
		}
		for ch := 0; ch < Channels; ch++ {
			a := data[idx*Channels+ch]
			b := data[next*Channels+ch]
			out[i*Channels+ch] = a + (b-a)*frac
		}
		s.pos += s.rate
		s.produced++
	}
}

var _ Source = (*BufferSource)(nil)
