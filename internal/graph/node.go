// SPDX-License-Identifier: MIT
package graph

// Node is any element of an audio graph.
type Node interface {
	Context() *Context
	Connect(dst Node) Node
	Disconnect()
	DisconnectFrom(dst Node)
	NumInputs() int
	NumOutputs() int
	base() *nodeBase
}

// processor renders one quantum: in is the mix of all inputs, out receives
// the node output, t is the context time of the first frame.
type processor interface {
	process(in, out []float32, t float64)
}

// nodeBase holds the connections and render buffers every node shares.
type nodeBase struct {
	ctx     *Context
	self    Node
	proc    processor
	inputs  []Node
	outputs []Node

	pulled uint64
	mix    []float32
	out    []float32
}

func (n *nodeBase) base() *nodeBase { return n }

// init wires the base to its concrete node.
func (n *nodeBase) init(ctx *Context, self interface {
	Node
	processor
}) {
	n.ctx = ctx
	n.self = self
	n.proc = self
	n.mix = make([]float32, Quantum*Channels)
	n.out = make([]float32, Quantum*Channels)
}

// Context returns the context the node belongs to.
func (n *nodeBase) Context() *Context { return n.ctx }

// Connect routes this node's output into dst and returns dst so pipelines can
// be chained. Connecting nodes from different contexts panics.
func (n *nodeBase) Connect(dst Node) Node {
	db := dst.base()
	if db.ctx != n.ctx {
		panic("graph: cannot connect nodes from different contexts")
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, o := range n.outputs {
		if o == dst {
			return dst
		}
	}
	n.outputs = append(n.outputs, dst)
	db.inputs = append(db.inputs, n.self)
	return dst
}

// Disconnect removes every outgoing connection of this node.
func (n *nodeBase) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, o := range n.outputs {
		o.base().removeInput(n.self)
	}
	n.outputs = nil
}

// DisconnectFrom removes the connection from this node to dst, if any.
func (n *nodeBase) DisconnectFrom(dst Node) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for i, o := range n.outputs {
		if o == dst {
			n.outputs = append(n.outputs[:i], n.outputs[i+1:]...)
			dst.base().removeInput(n.self)
			return
		}
	}
}

func (n *nodeBase) removeInput(src Node) {
	for i, in := range n.inputs {
		if in == src {
			n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
			return
		}
	}
}

// NumInputs returns how many nodes feed this node.
func (n *nodeBase) NumInputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.inputs)
}

// NumOutputs returns how many nodes this node feeds.
func (n *nodeBase) NumOutputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.outputs)
}

// pull renders the node once per quantum. Callers hold ctx.mu.
func (n *nodeBase) pull(q uint64, t float64) []float32 {
	if n.pulled == q {
		return n.out
	}
	n.pulled = q
	clear(n.mix)
	for _, in := range n.inputs {
		src := in.base().pull(q, t)
		for i, v := range src {
			n.mix[i] += v
		}
	}
	n.proc.process(n.mix, n.out, t)
	return n.out
}
