// SPDX-License-Identifier: MIT
package codec

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

type oggReader struct {
	rs       io.ReadSeekCloser
	dec      *oggvorbis.Reader
	channels int
	buf      []float32
}

func probeOgg(rs io.ReadSeeker) (Info, error) {
	dec, err := oggvorbis.NewReader(rs)
	if err != nil {
		return Info{}, fmt.Errorf("%w", err)
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return Info{}, fmt.Errorf("%w: ogg sample rate %d", ErrUnsupported, rate)
	}
	return Info{
		Duration:   float64(dec.Length()) / float64(rate),
		SampleRate: rate,
		Channels:   dec.Channels(),
	}, nil
}

func newOggReader(rs io.ReadSeekCloser) (*oggReader, error) {
	dec, err := oggvorbis.NewReader(rs)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	if dec.Channels() < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, dec.Channels())
	}
	return &oggReader{rs: rs, dec: dec, channels: dec.Channels()}, nil
}

func (r *oggReader) SampleRate() float64 { return float64(r.dec.SampleRate()) }

func (r *oggReader) frames() int64 {
	if l := r.dec.Length(); l > 0 {
		return l
	}
	return -1
}

func (r *oggReader) Read(dst []float32) (int, error) {
	need := len(dst) / 2 * r.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]

	// Read returns a count of values, not frames.
	n, err := r.dec.Read(r.buf)
	frames := n / r.channels
	for i := range frames {
		toStereo(dst[i*2:], r.buf[i*r.channels:], r.channels)
	}
	return frames, err
}

func (r *oggReader) Seek(frame int64) error {
	return r.dec.SetPosition(frame)
}

func (r *oggReader) Close() error { return r.rs.Close() }
