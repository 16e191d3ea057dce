// SPDX-License-Identifier: MIT
package graph

// Stream is an external live audio stream, such as a voice chat track.
type Stream interface {
	// AudioTracks returns the number of audio tracks carried by the stream.
	AudioTracks() int
	// Active reports whether the stream is still producing audio.
	Active() bool
	// SampleRate returns the rate of samples returned by ReadSamples.
	SampleRate() float64
	// ReadSamples copies up to len(dst) buffered mono samples into dst and
	// returns how many were copied. It never blocks.
	ReadSamples(dst []float32) int
}

// MediaStreamSource feeds a Stream into the graph.
type MediaStreamSource struct {
	nodeBase
	stream Stream
	step   float64 // Stream samples per output frame.
	phase  float64
	buf    []float32
}

// NewMediaStreamSource creates a source node reading from stream.
func (c *Context) NewMediaStreamSource(stream Stream) *MediaStreamSource {
	step := 1.0
	if sr := stream.SampleRate(); sr > 0 {
		step = sr / c.sampleRate
	}
	m := &MediaStreamSource{
		stream: stream,
		step:   step,
		buf:    make([]float32, int(float64(Quantum)*step)+2),
	}
	m.init(c, m)
	return m
}

// Stream returns the wrapped stream.
func (m *MediaStreamSource) Stream() Stream { return m.stream }

func (m *MediaStreamSource) process(_, out []float32, _ float64) {
	clear(out)
	if !m.stream.Active() {
		return
	}
	// Nearest-sample resampling is enough for metering.
	need := int(m.phase + float64(Quantum)*m.step)
	need = min(need, len(m.buf))
	got := m.stream.ReadSamples(m.buf[:need])
	if got == 0 {
		return
	}
	for i := 0; i < Quantum; i++ {
		idx := int(m.phase + float64(i)*m.step)
		if idx >= got {
			break
		}
		v := m.buf[idx]
		out[i*Channels], out[i*Channels+1] = v, v
	}
	m.phase = m.phase + float64(Quantum)*m.step - float64(need)
}
