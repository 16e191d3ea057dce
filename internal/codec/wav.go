// SPDX-License-Identifier: MIT
package codec

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavReader struct {
	rs       io.ReadSeekCloser
	dec      *wav.Decoder
	rate     float64
	channels int
	scale    float32
	length   int64
	intBuf   *goaudio.IntBuffer
	frame    []float32
}

func probeWAV(rs io.ReadSeeker) (Info, error) {
	dec, frames, err := readWAVHeader(rs)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Duration:   float64(frames) / float64(dec.SampleRate),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// readWAVHeader positions dec at the first PCM frame and counts the frames
// in the data chunk. The RIFF size also covers the header chunks, so it
// cannot be used for the length.
func readWAVHeader(rs io.ReadSeeker) (*wav.Decoder, int64, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav", ErrUnsupported)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, 0, err
	}
	block := int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if block <= 0 || dec.SampleRate == 0 {
		return nil, 0, fmt.Errorf("%w: %d channels of %d bits at %d Hz",
			ErrUnsupported, dec.NumChans, dec.BitDepth, dec.SampleRate)
	}
	return dec, dec.PCMLen() / block, nil
}

func newWAVReader(rs io.ReadSeekCloser) (*wavReader, error) {
	dec, frames, err := readWAVHeader(rs)
	if err != nil {
		return nil, err
	}
	r := &wavReader{
		rs:       rs,
		rate:     float64(dec.SampleRate),
		channels: int(dec.NumChans),
		length:   frames,
		frame:    make([]float32, dec.NumChans),
	}
	if err := r.rewind(); err != nil {
		return nil, err
	}
	return r, nil
}

// rewind restarts decoding from the first PCM frame.
func (r *wavReader) rewind() error {
	if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
		return err
	}
	dec, _, err := readWAVHeader(r.rs)
	if err != nil {
		return err
	}
	switch dec.BitDepth {
	case 8:
		r.scale = 1.0 / 128
	case 16:
		r.scale = 1.0 / 32768
	case 24:
		r.scale = 1.0 / 8388608
	case 32:
		r.scale = 1.0 / 2147483648
	default:
		return fmt.Errorf("%w: %d-bit wav", ErrUnsupported, dec.BitDepth)
	}
	r.dec = dec
	r.intBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: r.channels, SampleRate: int(r.rate)},
		Data:   make([]int, 4096*r.channels),
	}
	return nil
}

func (r *wavReader) SampleRate() float64 { return r.rate }
func (r *wavReader) frames() int64       { return r.length }

func (r *wavReader) Read(dst []float32) (int, error) {
	want := len(dst) / 2
	if want == 0 {
		return 0, nil
	}
	if need := want * r.channels; cap(r.intBuf.Data) < need {
		r.intBuf.Data = make([]int, need)
	} else {
		r.intBuf.Data = r.intBuf.Data[:need]
	}

	n, err := r.dec.PCMBuffer(r.intBuf)
	frames := n / r.channels
	for i := range frames {
		for ch := range r.channels {
			r.frame[ch] = float32(r.intBuf.Data[i*r.channels+ch]) * r.scale
		}
		toStereo(dst[i*2:], r.frame, r.channels)
	}
	if frames == 0 && err == nil {
		err = io.EOF
	}
	return frames, err
}

// Seek rewinds and decodes forward; the PCM chunk has no frame index.
func (r *wavReader) Seek(frame int64) error {
	if err := r.rewind(); err != nil {
		return err
	}
	skip := make([]float32, 4096*2)
	for frame > 0 {
		chunk := skip[:min(int64(len(skip)/2), frame)*2]
		n, err := r.Read(chunk)
		frame -= int64(n)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *wavReader) Close() error { return r.rs.Close() }
