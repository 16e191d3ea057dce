// SPDX-License-Identifier: MIT
package sound

import (
	"context"

	"gonum.org/v1/gonum/spatial/r2"
)

// PositionalOptions configure PlayAtPosition.
type PositionalOptions struct {
	// Volume is the volume at the emitter. Defaults to 1.
	Volume *float64
	// NoEasing disables distance falloff inside the radius.
	NoEasing bool
	// IgnoreWalls lets sound pass through walls.
	IgnoreWalls bool
	// BaseEffect applies to unmuffled playback.
	BaseEffect Effect
	// MuffledEffect applies when the loudest listener hears through a
	// muffling wall.
	MuffledEffect Effect
	Playback      PlayOptions
}

// PlayAtPosition plays the Sound as a point source at origin heard within
// radius scene units. The loudest listener sets the volume and decides
// whether the muffled effect applies. Nothing plays when no listener can
// hear it.
func (s *Sound) PlayAtPosition(ctx context.Context, origin r2.Vec, radius float64, o PositionalOptions) error {
	if s.deps.Spatial == nil || s.deps.Listeners == nil {
		return ErrNoSpatial
	}
	base := 1.0
	if o.Volume != nil {
		base = *o.Volume
	}

	emitter := s.deps.Spatial.Emitter(origin, radius, !o.IgnoreWalls)
	volume, muffled := 0.0, false
	for _, l := range s.deps.Listeners.ListenerPositions() {
		v, m := emitter.Measure(l, !o.NoEasing)
		if v *= base; v > volume {
			volume, muffled = v, m
		}
	}
	if volume <= 0 {
		s.log.Debugf("inaudible at (%.0f, %.0f)", origin.X, origin.Y)
		return nil
	}

	po := o.Playback
	po.Volume = &volume
	var fx Effect
	switch {
	case muffled && o.MuffledEffect != nil:
		fx = o.MuffledEffect
	case o.BaseEffect != nil:
		fx = o.BaseEffect
	}
	if fx != nil {
		po.Effects = append(append([]Effect(nil), po.Effects...), fx)
	}
	return s.Play(ctx, po)
}
