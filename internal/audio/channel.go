// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"soundhub/internal/graph"
)

// Channel names.
const (
	Music       = "music"
	Environment = "environment"
	Interface   = "interface"
)

// ChannelNames lists the channels in mix order.
var ChannelNames = []string{Music, Environment, Interface}

// settingKeys are the persisted volume settings of each channel, in the
// "core" namespace.
var settingKeys = map[string]string{
	Music:       "globalPlaylistVolume",
	Environment: "globalAmbientVolume",
	Interface:   "globalInterfaceVolume",
}

// SettingsNamespace holds the channel volume settings.
const SettingsNamespace = "core"

// DefaultChannelVolume is the volume of a channel with no stored setting.
const DefaultChannelVolume = 0.5

// Channel is a named output bus. Its audio context and master gain exist
// only once audio has been unlocked.
type Channel struct {
	name    string
	setting string

	mu     sync.Mutex
	ctx    *graph.Context
	master *graph.Gain

	// analyzer is guarded by the helper's analysis lock.
	analyzer *analyzer
}

func newChannel(name string) *Channel {
	return &Channel{name: name, setting: settingKeys[name]}
}

// open creates the channel's context and master gain.
func (c *Channel) open(sampleRate float64, clk clockwork.Clock, volume float64) error {
	ctx, err := graph.NewContext(sampleRate, clk)
	if err != nil {
		return fmt.Errorf("open %s channel: %w", c.name, err)
	}
	master := ctx.NewGain()
	master.Gain().SetValue(volume)
	master.Connect(ctx.Destination())

	c.mu.Lock()
	c.ctx, c.master = ctx, master
	c.mu.Unlock()
	return nil
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Context returns the channel's audio context, or nil before unlock.
func (c *Channel) Context() *graph.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Input returns the master gain sounds connect to, or nil before unlock.
func (c *Channel) Input() graph.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.master == nil {
		return nil
	}
	return c.master
}

// Available reports whether the channel has been opened.
func (c *Channel) Available() bool { return c.Context() != nil }

// Volume returns the master gain, or 0 before unlock.
func (c *Channel) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.master == nil {
		return 0
	}
	return c.master.Gain().Value()
}

func (c *Channel) setVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.master != nil {
		c.master.Gain().SetValue(v)
	}
}

func (c *Channel) render(out []float32) {
	if ctx := c.Context(); ctx != nil {
		ctx.Render(out)
		return
	}
	clear(out)
}

func (c *Channel) close() {
	if ctx := c.Context(); ctx != nil {
		ctx.Close()
	}
}
