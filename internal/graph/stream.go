// SPDX-License-Identifier: MIT
package graph

import (
	"errors"
	"io"

	applog "soundhub/internal/log"
)

// Decoder progressively decodes audio to interleaved stereo float32.
type Decoder interface {
	SampleRate() float64
	// Read fills dst with whole stereo frames and returns how many frames it
	// wrote. It returns io.EOF once the stream is exhausted.
	Read(dst []float32) (int, error)
	// Seek moves the read position to the given frame.
	Seek(frame int64) error
	Close() error
}

const streamChunkFrames = 1024

// StreamSource plays a Decoder progressively, keeping only one chunk of
// decoded audio in memory.
type StreamSource struct {
	nodeBase
	scheduling
	dec  Decoder
	rate float64

	chunk   []float32
	chunkN  int   // Frames available in chunk.
	chunkAt int   // Next frame to take from chunk.
	readPos int64 // Source frame index of the next frame taken.
	eof     bool
	wrapped bool

	a, b   [Channels]float32
	phase   float64
	primed  bool
	drained bool // The last source frame is in a.
}

// NewStreamSource creates a source reading from dec. The source owns dec and
// closes it when playback ends.
func (c *Context) NewStreamSource(dec Decoder) *StreamSource {
	s := &StreamSource{
		dec:   dec,
		rate:  dec.SampleRate() / c.sampleRate,
		chunk: make([]float32, streamChunkFrames*Channels),
	}
	s.init(c, s)
	return s
}

// Start begins playback at context time when, offset seconds into the
// stream, for at most duration seconds (<= 0 or +Inf for unbounded).
func (s *StreamSource) Start(when, offset, duration float64) {
	if !s.start(when, offset, duration, s.ctx.sampleRate) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		s.finish()
		return
	}
	if s.offset > 0 {
		s.seek(int64(s.offset * s.dec.SampleRate()))
	}
}

// seek repositions the decoder. Callers hold mu.
func (s *StreamSource) seek(frame int64) {
	if err := s.dec.Seek(frame); err != nil {
		applog.Warnf("StreamSource: seek to frame %d failed: %v", frame, err)
		s.eof = true
		return
	}
	s.readPos = frame
	s.chunkN, s.chunkAt = 0, 0
	s.eof = false
}

// next returns the next source frame, wrapping at the loop end. ok is false
// once the stream is exhausted. Callers hold mu.
func (s *StreamSource) next() (frame [Channels]float32, ok bool) {
	if s.loop && s.loopEnd > 0 {
		lo, hi := s.loopStart*s.dec.SampleRate(), s.loopEnd*s.dec.SampleRate()
		if hi > lo && float64(s.readPos) >= hi {
			s.seek(int64(lo))
		}
	}
	for s.chunkAt >= s.chunkN {
		if s.eof {
			// Nothing was read since the last wrap, so the loop is empty.
			if !s.loop || s.wrapped {
				return frame, false
			}
			s.seek(int64(s.loopStart * s.dec.SampleRate()))
			s.wrapped = true
			if s.eof {
				return frame, false
			}
		}
		n, err := s.dec.Read(s.chunk)
		s.chunkN, s.chunkAt = n, 0
		if n > 0 {
			s.wrapped = false
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				applog.Warnf("StreamSource: decode error: %v", err)
			}
			s.eof = true
		}
	}
	copy(frame[:], s.chunk[s.chunkAt*Channels:])
	s.chunkAt++
	s.readPos++
	return frame, true
}

func (s *StreamSource) process(_, out []float32, t float64) {
	clear(out)
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := 1 / s.ctx.sampleRate
	for i := 0; i < Quantum; i++ {
		if !s.active(t + float64(i)*dt) {
			if s.ended {
				s.release()
				return
			}
			continue
		}
		if !s.primed {
			var ok bool
			if s.a, ok = s.next(); !ok {
				s.finish()
				s.release()
				return
			}
			if s.b, ok = s.next(); !ok {
				s.b, s.drained = s.a, true
			}
			s.primed = true
		}
		frac := float32(s.phase)
		for ch := 0; ch < Channels; ch++ {
			out[i*Channels+ch] = s.a[ch] + (s.b[ch]-s.a[ch])*frac
		}
		s.produced++
		s.phase += s.rate
		for s.phase >= 1 {
			s.phase--
			if s.drained {
				s.finish()
				s.release()
				return
			}
			s.a = s.b
			var ok bool
			if s.b, ok = s.next(); !ok {
				s.b, s.drained = s.a, true
			}
		}
	}
}

// release closes the decoder once playback has ended. Callers hold mu.
func (s *StreamSource) release() {
	if s.dec == nil {
		return
	}
	if err := s.dec.Close(); err != nil {
		applog.Debugf("StreamSource: close: %v", err)
	}
	s.dec = nil
}

// Halt ends playback immediately without firing the ended callback and
// releases the decoder.
func (s *StreamSource) Halt() {
	s.scheduling.Halt()
	s.mu.Lock()
	s.release()
	s.mu.Unlock()
}

var _ Source = (*StreamSource)(nil)
