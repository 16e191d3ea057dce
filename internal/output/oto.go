// SPDX-License-Identifier: MIT
//go:build !headless

package output

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	applog "soundhub/internal/log"
)

// Oto plays the rendered mix through oto's float32 player.
type Oto struct {
	r      Renderer
	ctx    *oto.Context
	frames int
	buf    []float32
	log    applog.Component

	mu     sync.Mutex
	player *oto.Player
}

func newOto(r Renderer, cfg Config) (Sink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &Oto{
		r:      r,
		ctx:    ctx,
		frames: cfg.FramesPerBuffer,
		buf:    make([]float32, cfg.FramesPerBuffer*Channels),
		log:    applog.Component("Oto"),
	}, nil
}

// Read renders whole blocks into p as little-endian float32.
func (o *Oto) Read(p []byte) (int, error) {
	block := len(o.buf) * 4
	n := 0
	for len(p)-n >= block {
		o.r.Render(o.buf)
		encodeFloats(p[n:], o.buf)
		n += block
	}
	if n == 0 {
		// Oto asked for less than one block.
		samples := o.buf[:len(p)/4]
		o.r.Render(samples)
		encodeFloats(p, samples)
		n = len(samples) * 4
	}
	return n, nil
}

func encodeFloats(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// Start begins playback.
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
		o.player.Play()
		o.log.Infof("output started, %d frames per block", o.frames)
	}
	return nil
}

// Close stops playback.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
