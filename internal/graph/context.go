// SPDX-License-Identifier: MIT

// Package graph is a small software audio graph: nodes are connected into a
// pipeline ending at a context's destination, and the context renders
// interleaved stereo float32 in fixed quanta when an output device (or a test)
// pulls from it. Time is anchored to a clockwork clock so playback positions,
// fades and schedules share one timeline.
package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// Quantum is the number of frames rendered per processing block.
	Quantum = 128
	// Channels is the channel count of every node output.
	Channels = 2

	// maxRenderLag is how far rendering may fall behind the clock before it
	// skips ahead to the present.
	maxRenderLag = 0.1
)

// Context owns a graph of nodes sharing one sample rate and timeline.
type Context struct {
	sampleRate float64
	clock      clockwork.Clock
	epoch      time.Time

	// mu serialises rendering with topology changes.
	mu        sync.Mutex
	dest      *Destination
	taps      []Node
	quantum   uint64
	renderPos float64   // Context time of the next frame to render.
	pending   []float32 // Rendered samples not yet handed out.
	scratch   []float32
	closed    bool
}

// NewContext creates a context at sampleRate anchored to clock.
func NewContext(sampleRate float64, clock clockwork.Clock) (*Context, error) {
	if sampleRate < 3000 || sampleRate > 768000 {
		return nil, fmt.Errorf("sample rate %v out of range", sampleRate)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Context{
		sampleRate: sampleRate,
		clock:      clock,
		epoch:      clock.Now(),
		scratch:    make([]float32, Quantum*Channels),
	}
	c.dest = &Destination{}
	c.dest.init(c, c.dest)
	return c, nil
}

// SampleRate returns the context sample rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// Clock returns the clock the context is anchored to.
func (c *Context) Clock() clockwork.Clock { return c.clock }

// CurrentTime returns the context time in seconds.
func (c *Context) CurrentTime() float64 {
	return c.clock.Since(c.epoch).Seconds()
}

// Destination is the final node of the graph.
func (c *Context) Destination() *Destination { return c.dest }

// Close marks the context closed; Render then produces silence.
func (c *Context) Close() {
	c.mu.Lock()
	c.closed = true
	c.taps = nil
	c.mu.Unlock()
}

func (c *Context) addTap(n Node) {
	c.mu.Lock()
	c.taps = append(c.taps, n)
	c.mu.Unlock()
}

func (c *Context) removeTap(n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.taps {
		if t == n {
			c.taps = append(c.taps[:i], c.taps[i+1:]...)
			return
		}
	}
}

// Render fills out with interleaved stereo samples pulled from the
// destination. Taps such as analysers are processed every quantum even when
// nothing downstream consumes them.
func (c *Context) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		clear(out)
		return
	}
	if now := c.CurrentTime(); now-c.renderPos > maxRenderLag {
		c.renderPos = now
		c.pending = nil
	}

	for len(out) > 0 {
		if len(c.pending) == 0 {
			c.renderQuantum()
			c.pending = c.scratch
		}
		n := copy(out, c.pending)
		out = out[n:]
		c.pending = c.pending[n:]
	}
}

func (c *Context) renderQuantum() {
	c.quantum++
	t := c.renderPos
	buf := c.dest.pull(c.quantum, t)
	for _, tap := range c.taps {
		tap.base().pull(c.quantum, t)
	}
	copy(c.scratch, buf)
	c.renderPos += Quantum / c.sampleRate
}

// RenderSeconds renders and discards d seconds of audio. Used to drive
// analysis-only contexts and tests.
func (c *Context) RenderSeconds(d float64) {
	frames := int(d * c.sampleRate)
	if frames <= 0 {
		return
	}
	c.Render(make([]float32, frames*Channels))
}

// Destination sums its inputs into the context output.
type Destination struct {
	nodeBase
}

func (d *Destination) process(in, out []float32, _ float64) {
	copy(out, in)
}
