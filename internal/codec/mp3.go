// SPDX-License-Identifier: MIT
package codec

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always decodes to 16-bit little-endian stereo.
const mp3FrameBytes = 4

type mp3Reader struct {
	rs  io.ReadSeekCloser
	dec *gomp3.Decoder
	buf []byte
}

func probeMP3(rs io.ReadSeeker) (Info, error) {
	dec, err := gomp3.NewDecoder(rs)
	if err != nil {
		return Info{}, fmt.Errorf("%w", err)
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return Info{}, fmt.Errorf("%w: mp3 sample rate %d", ErrUnsupported, rate)
	}
	return Info{
		Duration:   float64(dec.Length()) / mp3FrameBytes / float64(rate),
		SampleRate: rate,
		Channels:   2,
	}, nil
}

func newMP3Reader(rs io.ReadSeekCloser) (*mp3Reader, error) {
	dec, err := gomp3.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return &mp3Reader{rs: rs, dec: dec, buf: make([]byte, 8192)}, nil
}

func (r *mp3Reader) SampleRate() float64 { return float64(r.dec.SampleRate()) }

func (r *mp3Reader) frames() int64 {
	if l := r.dec.Length(); l > 0 {
		return l / mp3FrameBytes
	}
	return -1
}

func (r *mp3Reader) Read(dst []float32) (int, error) {
	need := len(dst) / 2 * mp3FrameBytes
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	r.buf = r.buf[:need]

	n, err := io.ReadFull(r.dec, r.buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	frames := n / mp3FrameBytes
	for i := range frames * 2 {
		v := int16(uint16(r.buf[2*i]) | uint16(r.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}
	return frames, err
}

func (r *mp3Reader) Seek(frame int64) error {
	_, err := r.dec.Seek(frame*mp3FrameBytes, io.SeekStart)
	return err
}

func (r *mp3Reader) Close() error { return r.rs.Close() }
