// SPDX-License-Identifier: MIT

// Package rtcstream turns received WebRTC voice tracks into graph streams
// for level reporting.
package rtcstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	applog "soundhub/internal/log"
)

const (
	// SampleRate is the rate opus tracks are decoded at.
	SampleRate = 48000
	// maxFrame is 120 ms of mono audio, the longest opus frame.
	maxFrame = SampleRate * 120 / 1000
	// DefaultBufferSamples holds one second of audio.
	DefaultBufferSamples = SampleRate
)

var ErrNotAudio = errors.New("track is not audio")

// PacketReader yields RTP packets. *webrtc.TrackRemote implements it.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Decoder decodes one payload into mono float samples.
type Decoder interface {
	DecodeFloat32(data []byte, pcm []float32) (int, error)
}

// TrackStream buffers decoded audio from a PacketReader. When the buffer is
// full the oldest samples are dropped.
type TrackStream struct {
	reader PacketReader
	dec    Decoder
	log    applog.Component

	active atomic.Bool
	errors atomic.Int64

	mu    sync.Mutex
	ring  []float32
	start int
	n     int
}

// New returns a stream decoding packets from reader with dec.
func New(id string, reader PacketReader, dec Decoder, bufferSamples int) *TrackStream {
	if bufferSamples <= 0 {
		bufferSamples = DefaultBufferSamples
	}
	s := &TrackStream{
		reader: reader,
		dec:    dec,
		log:    applog.Component("TrackStream[" + id + "]"),
		ring:   make([]float32, bufferSamples),
	}
	s.active.Store(true)
	return s
}

// NewOpus wraps a remote opus audio track.
func NewOpus(track *webrtc.TrackRemote) (*TrackStream, error) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return nil, ErrNotAudio
	}
	dec, err := opus.NewDecoder(SampleRate, 1)
	if err != nil {
		return nil, err
	}
	return New(track.StreamID(), track, dec, 0), nil
}

// Run decodes packets until the reader fails or ctx is done. The stream
// is inactive afterwards.
func (s *TrackStream) Run(ctx context.Context) error {
	defer s.active.Store(false)
	pcm := make([]float32, maxFrame)
	for ctx.Err() == nil {
		pkt, _, err := s.reader.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		n, err := s.dec.DecodeFloat32(pkt.Payload, pcm)
		if err != nil {
			if s.errors.Add(1) <= 5 {
				s.log.Warnf("decode error: %v (payload %d bytes)", err, len(pkt.Payload))
			}
			continue
		}
		s.write(pcm[:n])
	}
	return ctx.Err()
}

func (s *TrackStream) write(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := len(s.ring)
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	for _, v := range samples {
		end := (s.start + s.n) % size
		s.ring[end] = v
		if s.n < size {
			s.n++
		} else {
			s.start = (s.start + 1) % size
		}
	}
}

// AudioTracks reports one track.
func (s *TrackStream) AudioTracks() int { return 1 }

// Active reports whether Run is still decoding.
func (s *TrackStream) Active() bool { return s.active.Load() }

// SampleRate returns the decode rate.
func (s *TrackStream) SampleRate() float64 { return SampleRate }

// Buffered returns the number of samples waiting to be read.
func (s *TrackStream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// ReadSamples moves up to len(dst) buffered samples into dst.
func (s *TrackStream) ReadSamples(dst []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(len(dst), s.n)
	for i := range n {
		dst[i] = s.ring[(s.start+i)%len(s.ring)]
	}
	s.start = (s.start + n) % len(s.ring)
	s.n -= n
	return n
}
