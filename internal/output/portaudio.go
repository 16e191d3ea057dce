// SPDX-License-Identifier: MIT
//go:build !headless

package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	applog "soundhub/internal/log"
)

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

// Initialize sets up the PortAudio subsystem. Pair it with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Devices lists the output-capable devices. PortAudio must be initialised.
func Devices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultOutputDevice()

	devices := make([]Device, 0, len(all))
	for i, d := range all {
		if d.MaxOutputChannels <= 0 {
			continue
		}
		dev := Device{
			ID:                i,
			Name:              d.Name,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			LowLatencyMs:      d.DefaultLowOutputLatency.Seconds() * 1000,
			HighLatencyMs:     d.DefaultHighOutputLatency.Seconds() * 1000,
			Default:           def != nil && d.Name == def.Name && d.HostApi == def.HostApi,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// outputDevice resolves a device index, or the default for DefaultDevice.
func outputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDevice {
		return portaudio.DefaultOutputDevice()
	}
	all, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(all) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	if all[id].MaxOutputChannels < Channels {
		return nil, fmt.Errorf("device %d does not support stereo output", id)
	}
	return all[id], nil
}

// PortAudio plays the rendered mix on a PortAudio device.
type PortAudio struct {
	r      Renderer
	params portaudio.StreamParameters
	log    applog.Component

	mu     sync.Mutex
	stream *portaudio.Stream
}

func newPortAudio(r Renderer, cfg Config) (Sink, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	device, err := outputDevice(cfg.Device)
	if err != nil {
		_ = Terminate()
		return nil, err
	}
	return &PortAudio{
		r: r,
		params: portaudio.StreamParameters{
			Output: portaudio.StreamDeviceParameters{
				Device:   device,
				Channels: Channels,
				Latency:  device.DefaultLowOutputLatency,
			},
			FramesPerBuffer: cfg.FramesPerBuffer,
			SampleRate:      cfg.SampleRate,
		},
		log: applog.Component("PortAudio"),
	}, nil
}

func (p *PortAudio) process(out []float32) {
	p.r.Render(out)
}

// Start opens and starts the device stream.
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}
	stream, err := portaudio.OpenStream(p.params, p.process)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	p.stream = stream
	p.log.Infof("output started on %s at %.0f Hz", p.params.Output.Device.Name, p.params.SampleRate)
	return nil
}

// Close stops the stream and terminates PortAudio.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return Terminate()
}
