// SPDX-License-Identifier: MIT
package audio

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"soundhub/internal/codec"
	"soundhub/internal/geometry"
	"soundhub/internal/sound"
)

func TestPlayAtPositionThroughScene(t *testing.T) {
	scene := geometry.NewScene(100)
	scene.SetListeners(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 5000, Y: 0})
	scene.AddWall(geometry.Wall{A: r2.Vec{X: 150, Y: -100}, B: r2.Vec{X: 150, Y: 100}, Kind: geometry.Muffle})
	spatial, listeners := SceneDeps(scene)

	f := newFixture(t)
	h := New(Config{SampleRate: testRate}, Deps{
		Opener:    codec.NewFetcher(t.TempDir(), time.Second),
		Spatial:   spatial,
		Listeners: listeners,
		Clock:     f.clock,
	})
	t.Cleanup(func() { _ = h.Close() })
	h.Gesture("click")
	f.h = h
	f.cache("campfire.ogg")

	s, err := h.Create("campfire.ogg", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(testCtx(t), sound.LoadOptions{}); err != nil {
		t.Fatal(err)
	}

	// 2 units at 100 px per unit; the nearest listener is 100 px away
	// through a muffling wall, the other is out of range.
	err = s.PlayAtPosition(testCtx(t), r2.Vec{X: 200, Y: 0}, 2, sound.PositionalOptions{
		NoEasing:      true,
		MuffledEffect: sound.Lowpass(800),
	})
	if err != nil {
		t.Fatalf("PlayAtPosition: %v", err)
	}
	if !s.Playing() || s.Volume() != 1 {
		t.Fatalf("state %v volume %v, want playing at 1", s.State(), s.Volume())
	}

	far, _ := h.Create("campfire.ogg", CreateOptions{Singleton: sound.Bool(false)})
	if err := far.Load(testCtx(t), sound.LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := far.PlayAtPosition(testCtx(t), r2.Vec{X: 2500, Y: 0}, 2, sound.PositionalOptions{}); err != nil {
		t.Fatalf("PlayAtPosition: %v", err)
	}
	if far.Playing() {
		t.Error("a sound no listener can hear should not play")
	}
}
