// SPDX-License-Identifier: MIT
package sound

import (
	"fmt"

	"soundhub/internal/graph"
)

// Effect inserts processing between a Sound's source and its gain. Apply
// connects in to the nodes it creates and returns the last of them.
type Effect interface {
	Apply(ctx *graph.Context, in graph.Node) graph.Node
}

// Filter is a biquad filter effect.
type Filter struct {
	Type      graph.FilterType
	Frequency float64
	Q         float64
}

// Lowpass returns a lowpass filter at freq Hz.
func Lowpass(freq float64) Filter { return Filter{Type: graph.Lowpass, Frequency: freq} }

// Highpass returns a highpass filter at freq Hz.
func Highpass(freq float64) Filter { return Filter{Type: graph.Highpass, Frequency: freq} }

// Bandpass returns a bandpass filter centred on freq Hz.
func Bandpass(freq, q float64) Filter { return Filter{Type: graph.Bandpass, Frequency: freq, Q: q} }

// Apply implements Effect.
func (f Filter) Apply(ctx *graph.Context, in graph.Node) graph.Node {
	q := f.Q
	if q <= 0 {
		q = 1
	}
	return in.Connect(ctx.NewBiquad(f.Type, f.Frequency, q))
}

func (f Filter) String() string {
	return fmt.Sprintf("%s(%gHz)", f.Type, f.Frequency)
}
