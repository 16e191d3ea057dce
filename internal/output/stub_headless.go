// SPDX-License-Identifier: MIT
//go:build headless

package output

// DefaultDevice selects the host's default output device.
const DefaultDevice = -1

// Device describes a host audio device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
	Default           bool
}

func Initialize() error { return nil }

func Terminate() error { return nil }

// Devices reports no devices in headless builds.
func Devices() ([]Device, error) { return nil, ErrUnavailable }

func newPortAudio(Renderer, Config) (Sink, error) { return nil, ErrUnavailable }

func newOto(Renderer, Config) (Sink, error) { return nil, ErrUnavailable }
