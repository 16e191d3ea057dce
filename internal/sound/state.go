// SPDX-License-Identifier: MIT
package sound

import "errors"

// State is a Sound's position in its life cycle.
type State int

const (
	None State = iota
	Loading
	Loaded
	Starting
	Playing
	Paused
	Stopping
	Stopped
	Failed
)

var stateNames = [...]string{"NONE", "LOADING", "LOADED", "STARTING", "PLAYING", "PAUSED", "STOPPING", "STOPPED", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

var (
	// ErrNotPlaying is returned by Pause when the Sound is not playing.
	ErrNotPlaying = errors.New("sound: not playing")
	// ErrInvalidFadeType is returned by Fade for anything but linear or exponential.
	ErrInvalidFadeType = errors.New("sound: invalid fade type")
	// ErrNotLoaded is returned when playback is requested before a successful load.
	ErrNotLoaded = errors.New("sound: not loaded")
	// ErrNoOutput is returned when the output channel has no audio context yet.
	ErrNoOutput = errors.New("sound: output channel not available")
	// ErrNoSpatial is returned by PlayAtPosition without spatial collaborators.
	ErrNoSpatial = errors.New("sound: no spatial collaborator")
)

// Event names a Sound notification.
type Event string

const (
	EventLoad  Event = "load"
	EventPlay  Event = "play"
	EventPause Event = "pause"
	EventStop  Event = "stop"
	EventEnd   Event = "end"
)
