// SPDX-License-Identifier: MIT
package graph

import (
	"io"
	"math"
	"testing"
	"time"

	"soundhub/pkg/utils"
)

func TestParamLinearRamp(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := ctx.NewGain().Gain()
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	tests := []struct {
		at   float64
		want float64
	}{
		{0, 0},
		{0.25, 0.25},
		{0.5, 0.5},
		{1, 1},
		{5, 1},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.at); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestParamExponentialRampAndCancel(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := ctx.NewGain().Gain()
	p.SetValueAtTime(1, 0)
	if err := p.ExponentialRampToValueAtTime(0.01, 2); err != nil {
		t.Fatal(err)
	}
	if got := p.ValueAt(1); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("ValueAt(1) = %v, want 0.1", got)
	}

	p.CancelScheduledValues(1)
	if got := p.ValueAt(1.5); got != 1 {
		t.Errorf("after cancel ValueAt(1.5) = %v, want 1", got)
	}

	if err := p.ExponentialRampToValueAtTime(0, 3); err == nil {
		t.Error("exponential ramp to 0 should fail")
	}
}

func TestParamRampFromHeldValue(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := ctx.NewGain().Gain()
	p.SetValue(0.3)
	p.LinearRampToValueAtTime(0.9, 2)
	if got := p.ValueAt(1); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("ValueAt(1) = %v, want 0.6", got)
	}
}

func TestParamCompactsPastEvents(t *testing.T) {
	ctx, clock := newTestContext(t)
	p := ctx.NewGain().Gain()
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	clock.Advance(5 * time.Second)
	if got := p.Value(); got != 1 {
		t.Errorf("Value() = %v after ramp, want 1", got)
	}
	p.SetValueAtTime(0.2, 6)
	if got := p.ValueAt(5.5); got != 1 {
		t.Errorf("ValueAt(5.5) = %v, want 1", got)
	}
	if got := p.ValueAt(6); got != 0.2 {
		t.Errorf("ValueAt(6) = %v, want 0.2", got)
	}
	p.mu.Lock()
	n := len(p.events)
	p.mu.Unlock()
	if n != 2 {
		t.Errorf("events after compaction = %d, want 2", n)
	}
}

func TestAnalyserReportsPeakBin(t *testing.T) {
	ctx, _ := newTestContext(t)
	an, err := ctx.NewAnalyser(512)
	if err != nil {
		t.Fatal(err)
	}
	if an.FrequencyBinCount() != 256 || an.FFTSize() != 512 {
		t.Fatalf("bins=%d size=%d", an.FrequencyBinCount(), an.FFTSize())
	}
	if err := an.SetSmoothing(0); err != nil {
		t.Fatal(err)
	}

	// 1875Hz sits on bin 20 at 48kHz / 512.
	src := ctx.NewBufferSource(sineBuffer(48000, 1875, 0.5))
	src.Connect(an)
	src.Start(0, 0, 0)
	ctx.RenderSeconds(0.05)

	db := make([]float32, an.FrequencyBinCount())
	an.FloatFrequencyData(db)
	if best := utils.FindPeakBin(db, 0, len(db)-1); best != 20 {
		t.Errorf("peak bin = %d, want 20", best)
	}

	an.Detach()
	if src.NumOutputs() != 0 {
		t.Error("Detach left the input connected")
	}
	an.Detach()
}

func TestNewAnalyserRejectsSize(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := ctx.NewAnalyser(500); err == nil {
		t.Error("NewAnalyser(500) should fail")
	}
}

func peakAbs(data []float32) float64 {
	var p float64
	for _, v := range data {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func TestBiquadLowpass(t *testing.T) {
	tests := []struct {
		name     string
		freq     float64
		minPeak  float64
		maxPeak  float64
	}{
		{"passes 100Hz", 100, 0.9, 1.1},
		{"attenuates 8kHz", 8000, 0, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext(t)
			src := ctx.NewBufferSource(sineBuffer(9600, tt.freq, 1))
			lp := ctx.NewBiquad(Lowpass, 500, math.Sqrt2/2)
			src.Connect(lp).(*Biquad).Connect(ctx.Destination())
			src.Start(0, 0, 0)

			out := make([]float32, 4800*Channels)
			ctx.Render(out)
			p := peakAbs(out[2400*Channels:])
			if p < tt.minPeak || p > tt.maxPeak {
				t.Errorf("peak = %v, want in [%v, %v]", p, tt.minPeak, tt.maxPeak)
			}
		})
	}
}

func TestParseFilterType(t *testing.T) {
	for _, f := range []FilterType{Lowpass, Highpass, Bandpass} {
		got, err := ParseFilterType(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFilterType(%q) = %v, %v", f, got, err)
		}
	}
	if _, err := ParseFilterType("notch"); err == nil {
		t.Error("ParseFilterType(notch) should fail")
	}
}

// memDecoder is an in-memory Decoder.
type memDecoder struct {
	data   []float32
	pos    int
	closed bool
}

func (d *memDecoder) SampleRate() float64 { return testRate }

func (d *memDecoder) Read(dst []float32) (int, error) {
	n := copy(dst, d.data[d.pos*Channels:]) / Channels
	d.pos += n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (d *memDecoder) Seek(frame int64) error {
	d.pos = int(frame)
	return nil
}

func (d *memDecoder) Close() error {
	d.closed = true
	return nil
}

func rampDecoder(frames int) *memDecoder {
	data := make([]float32, frames*Channels)
	for i := range frames {
		data[2*i], data[2*i+1] = float32(i), float32(i)
	}
	return &memDecoder{data: data}
}

func TestStreamSourcePlaysEveryFrame(t *testing.T) {
	ctx, _ := newTestContext(t)
	dec := rampDecoder(300)
	src := ctx.NewStreamSource(dec)
	src.Connect(ctx.Destination())
	ended := make(chan struct{})
	src.OnEnded(func() { close(ended) })
	src.Start(0, 0, 0)

	out := make([]float32, 512*Channels)
	ctx.Render(out)
	for i := range 300 {
		if out[i*Channels] != float32(i) {
			t.Fatalf("frame %d = %v, want %d", i, out[i*Channels], i)
		}
	}
	if out[300*Channels] != 0 {
		t.Errorf("frame 300 = %v, want silence", out[300*Channels])
	}
	waitEnded(t, ended)
	if !dec.closed {
		t.Error("decoder not closed after playback ended")
	}
}

func TestStreamSourceOffset(t *testing.T) {
	ctx, _ := newTestContext(t)
	src := ctx.NewStreamSource(rampDecoder(30000))
	src.Connect(ctx.Destination())
	src.Start(0, 0.5, 0)

	out := make([]float32, 4*Channels)
	ctx.Render(out)
	if out[0] != 24000 || out[Channels] != 24001 {
		t.Errorf("first frames = %v, %v, want 24000, 24001", out[0], out[Channels])
	}
}

func TestStreamSourceLoop(t *testing.T) {
	ctx, _ := newTestContext(t)
	dec := &memDecoder{data: constBuffer(100, 1).Data}
	src := ctx.NewStreamSource(dec)
	src.Connect(ctx.Destination())
	src.SetLoop(true, 0, 0)
	src.Start(0, 0, 300/testRate)

	out := make([]float32, 512*Channels)
	ctx.Render(out)
	for i := range 300 {
		if out[i*Channels] != 1 {
			t.Fatalf("frame %d = %v, want looped 1", i, out[i*Channels])
		}
	}
	if out[300*Channels] != 0 {
		t.Errorf("frame 300 = %v, want silence", out[300*Channels])
	}
}

func TestStreamSourceHaltClosesDecoder(t *testing.T) {
	ctx, _ := newTestContext(t)
	dec := rampDecoder(1000)
	src := ctx.NewStreamSource(dec)
	src.Start(0, 0, 0)
	src.Halt()
	if !dec.closed || !src.Ended() {
		t.Errorf("closed=%v ended=%v after Halt", dec.closed, src.Ended())
	}
}

type fakeStream struct {
	active bool
	value  float32
}

func (s *fakeStream) AudioTracks() int    { return 1 }
func (s *fakeStream) Active() bool        { return s.active }
func (s *fakeStream) SampleRate() float64 { return testRate }
func (s *fakeStream) ReadSamples(dst []float32) int {
	for i := range dst {
		dst[i] = s.value
	}
	return len(dst)
}

func TestMediaStreamSource(t *testing.T) {
	ctx, _ := newTestContext(t)
	stream := &fakeStream{active: true, value: 0.5}
	src := ctx.NewMediaStreamSource(stream)
	src.Connect(ctx.Destination())

	out := make([]float32, Quantum*Channels)
	ctx.Render(out)
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("sample %d = %v, want 0.5", i, v)
		}
	}

	stream.active = false
	ctx.Render(out)
	if out[0] != 0 {
		t.Errorf("inactive stream rendered %v", out[0])
	}
}
