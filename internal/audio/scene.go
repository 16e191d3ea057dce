// SPDX-License-Identifier: MIT
package audio

import (
	"gonum.org/v1/gonum/spatial/r2"

	"soundhub/internal/geometry"
	"soundhub/internal/sound"
)

type sceneSpatial struct {
	scene *geometry.Scene
}

func (s sceneSpatial) Emitter(origin r2.Vec, radius float64, walls bool) sound.Emitter {
	return s.scene.Emitter(origin, radius, walls)
}

// SceneDeps returns the spatial collaborators backed by scene, for
// positional playback.
func SceneDeps(scene *geometry.Scene) (sound.Spatial, sound.Listeners) {
	return sceneSpatial{scene}, scene
}
