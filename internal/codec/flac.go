// SPDX-License-Identifier: MIT
package codec

import (
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

type flacReader struct {
	stream beep.StreamSeekCloser
	format beep.Format
	buf    [][2]float64
}

func probeFLAC(rs io.ReadSeeker) (Info, error) {
	stream, format, err := flac.Decode(rs)
	if err != nil {
		return Info{}, fmt.Errorf("%w", err)
	}
	rate := int(format.SampleRate)
	if rate <= 0 {
		return Info{}, fmt.Errorf("%w: flac sample rate %d", ErrUnsupported, rate)
	}
	return Info{
		Duration:   float64(stream.Len()) / float64(rate),
		SampleRate: rate,
		Channels:   format.NumChannels,
	}, nil
}

func newFLACReader(rs io.ReadSeekCloser) (*flacReader, error) {
	stream, format, err := flac.Decode(rs)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return &flacReader{stream: stream, format: format}, nil
}

func (r *flacReader) SampleRate() float64 { return float64(r.format.SampleRate) }
func (r *flacReader) frames() int64       { return int64(r.stream.Len()) }

func (r *flacReader) Read(dst []float32) (int, error) {
	want := len(dst) / 2
	if cap(r.buf) < want {
		r.buf = make([][2]float64, want)
	}
	r.buf = r.buf[:want]

	n, ok := r.stream.Stream(r.buf)
	for i := range n {
		dst[2*i], dst[2*i+1] = float32(r.buf[i][0]), float32(r.buf[i][1])
	}
	if !ok {
		if err := r.stream.Err(); err != nil {
			return n, err
		}
		return n, io.EOF
	}
	return n, nil
}

func (r *flacReader) Seek(frame int64) error {
	return r.stream.Seek(int(frame))
}

// Close closes the decoder, which closes the underlying source.
func (r *flacReader) Close() error { return r.stream.Close() }
