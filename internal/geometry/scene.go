// SPDX-License-Identifier: MIT

// Package geometry provides the spatial collaborator for positional sound:
// a flat scene of wall segments and listener positions, and point emitters
// that attenuate with distance and are blocked or muffled by walls.
package geometry

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// WallKind describes how a wall affects sound passing through it.
type WallKind int

const (
	// Block stops sound entirely.
	Block WallKind = iota
	// Muffle lets sound through with a muffled effect.
	Muffle
)

// ParseWallKind converts "block" or "muffle" to a WallKind.
func ParseWallKind(s string) (WallKind, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return Block, nil
	case "muffle":
		return Muffle, nil
	}
	return Block, fmt.Errorf("unknown wall kind %q", s)
}

// Wall is a segment in scene pixels.
type Wall struct {
	A, B r2.Vec
	Kind WallKind
}

// Scene holds walls and listener positions. Distances passed to Emitter are
// in grid units and converted with PixelsPerUnit.
type Scene struct {
	PixelsPerUnit float64

	mu        sync.RWMutex
	walls     []Wall
	listeners []r2.Vec
}

// NewScene creates an empty scene.
func NewScene(pixelsPerUnit float64) *Scene {
	if pixelsPerUnit <= 0 {
		pixelsPerUnit = 1
	}
	return &Scene{PixelsPerUnit: pixelsPerUnit}
}

// AddWall adds a wall segment.
func (s *Scene) AddWall(w Wall) {
	s.mu.Lock()
	s.walls = append(s.walls, w)
	s.mu.Unlock()
}

// SetListeners replaces the listener positions.
func (s *Scene) SetListeners(positions ...r2.Vec) {
	s.mu.Lock()
	s.listeners = append([]r2.Vec(nil), positions...)
	s.mu.Unlock()
}

// ListenerPositions returns the current listener positions.
func (s *Scene) ListenerPositions() []r2.Vec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]r2.Vec(nil), s.listeners...)
}

// Emitter describes a point sound of the given radius (grid units) at
// origin (pixels). With walls false, walls neither block nor muffle it.
func (s *Scene) Emitter(origin r2.Vec, radius float64, walls bool) *PointEmitter {
	return &PointEmitter{
		Origin: origin,
		Radius: radius * s.PixelsPerUnit,
		walls:  walls,
		scene:  s,
	}
}

// PointEmitter is a sound emitted from a point with a hearing radius in pixels.
type PointEmitter struct {
	Origin r2.Vec
	Radius float64

	walls bool
	scene *Scene
}

// Measure returns the volume multiplier heard at listener and whether the
// path to it is muffled. Listeners outside the radius or behind a blocking
// wall hear nothing. With easing the volume follows a cosine falloff from 1
// at the origin to 0 at the radius.
func (e *PointEmitter) Measure(listener r2.Vec, easing bool) (float64, bool) {
	d := r2.Norm(r2.Sub(listener, e.Origin))
	if e.Radius <= 0 || d > e.Radius {
		return 0, false
	}

	muffled := false
	if e.walls {
		e.scene.mu.RLock()
		for _, w := range e.scene.walls {
			if !segmentsIntersect(e.Origin, listener, w.A, w.B) {
				continue
			}
			if w.Kind == Block {
				e.scene.mu.RUnlock()
				return 0, false
			}
			muffled = true
		}
		e.scene.mu.RUnlock()
	}

	if !easing {
		return 1, muffled
	}
	return (1 + math.Cos(math.Pi*d/e.Radius)) / 2, muffled
}

// segmentsIntersect reports whether segment p1p2 crosses or touches q1q2.
func segmentsIntersect(p1, p2, q1, q2 r2.Vec) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

// onSegment reports whether c, known to be collinear with ab, lies on ab.
func onSegment(a, b, c r2.Vec) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}
