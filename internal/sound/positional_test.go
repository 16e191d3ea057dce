// SPDX-License-Identifier: MIT
package sound

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"soundhub/internal/graph"
)

// stubEmitter hears each listener at a fixed volume keyed by its X.
type stubEmitter map[float64]struct {
	volume  float64
	muffled bool
}

func (e stubEmitter) Measure(l r2.Vec, _ bool) (float64, bool) {
	v := e[l.X]
	return v.volume, v.muffled
}

type stubScene struct {
	emitter   stubEmitter
	listeners []r2.Vec
	walls     *bool
}

func (s *stubScene) Emitter(_ r2.Vec, _ float64, walls bool) Emitter {
	*s.walls = walls
	return s.emitter
}

func (s *stubScene) ListenerPositions() []r2.Vec { return s.listeners }

func positionalSound(t *testing.T, scene *stubScene) (*harness, *Sound) {
	t.Helper()
	h := newHarness(t)
	deps := h.deps()
	deps.Spatial, deps.Listeners = scene, scene
	h.buffers.Set("fire.wav", &graph.Buffer{SampleRate: 3000, Data: make([]float32, 6000)})
	s := New("fire.wav", h.out, deps, Options{})
	if err := s.Load(testCtx(t), LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	return h, s
}

func TestPlayAtPositionUsesLoudestListener(t *testing.T) {
	var walls bool
	scene := &stubScene{
		emitter: stubEmitter{
			1: {volume: 0.3},
			2: {volume: 0.6, muffled: true},
		},
		listeners: []r2.Vec{{X: 1}, {X: 2}},
		walls:     &walls,
	}
	_, s := positionalSound(t, scene)

	err := s.PlayAtPosition(testCtx(t), r2.Vec{}, 5, PositionalOptions{
		Volume:        Float(0.5),
		BaseEffect:    Highpass(200),
		MuffledEffect: Lowpass(500),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !walls {
		t.Error("walls should be considered by default")
	}
	if got := s.Volume(); got != 0.3 {
		t.Errorf("volume = %v, want 0.6 * 0.5", got)
	}
	s.mu.Lock()
	nodes := s.pipe.nodes
	s.mu.Unlock()
	if len(nodes) != 1 {
		t.Fatalf("pipeline has %d effect nodes, want 1", len(nodes))
	}
	if f, ok := nodes[0].(*graph.Biquad); !ok || f.Type() != graph.Lowpass {
		t.Errorf("effect = %v, want the muffled lowpass", nodes[0])
	}
}

func TestPlayAtPositionInaudible(t *testing.T) {
	var walls bool
	scene := &stubScene{emitter: stubEmitter{}, listeners: []r2.Vec{{X: 1}}, walls: &walls}
	_, s := positionalSound(t, scene)

	if err := s.PlayAtPosition(testCtx(t), r2.Vec{}, 5, PositionalOptions{IgnoreWalls: true}); err != nil {
		t.Fatal(err)
	}
	if walls {
		t.Error("IgnoreWalls should build the emitter without walls")
	}
	if s.Playing() {
		t.Error("inaudible sound should not play")
	}
}

func TestPlayAtPositionNeedsScene(t *testing.T) {
	h := newHarness(t)
	s := h.cached("plain.wav", 1)
	if err := s.PlayAtPosition(testCtx(t), r2.Vec{}, 1, PositionalOptions{}); !errors.Is(err, ErrNoSpatial) {
		t.Errorf("err = %v, want ErrNoSpatial", err)
	}
}
