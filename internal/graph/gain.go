// SPDX-License-Identifier: MIT
package graph

// Gain scales its input by an automatable gain parameter.
type Gain struct {
	nodeBase
	gain *Param
}

// NewGain creates a gain node with unity gain.
func (c *Context) NewGain() *Gain {
	g := &Gain{gain: newParam(c, 1)}
	g.init(c, g)
	return g
}

// Gain returns the gain parameter.
func (g *Gain) Gain() *Param { return g.gain }

func (g *Gain) process(in, out []float32, t float64) {
	v := float32(g.gain.ValueAt(t))
	for i, s := range in {
		out[i] = s * v
	}
}
