// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"slices"
)

// volumeExponent shapes the volume slider curve.
const volumeExponent = 1.5

// InputToVolume converts a linear slider position in [0, 1] to a gain.
func InputToVolume(input float64) float64 {
	return math.Pow(max(input, 0), volumeExponent)
}

// VolumeToInput converts a gain back to its slider position.
func VolumeToInput(volume float64) float64 {
	return math.Pow(max(volume, 0), 1/volumeExponent)
}

// GlobalMute reports whether every channel is muted.
func (h *Helper) GlobalMute() bool {
	h.muteMu.Lock()
	defer h.muteMu.Unlock()
	return h.muted
}

// SetGlobalMute mutes or unmutes every channel. Muting remembers the live
// channel volumes; unmuting restores the persisted ones. Before the unlock
// there are no channels and the call does nothing.
func (h *Helper) SetGlobalMute(mute bool) {
	h.muteMu.Lock()
	defer h.muteMu.Unlock()
	if !slices.ContainsFunc(h.Channels(), (*Channel).Available) {
		h.log.Debugf("global mute %v ignored before unlock", mute)
		return
	}
	if mute == h.muted {
		return
	}
	h.muted = mute
	for _, c := range h.Channels() {
		if !c.Available() {
			continue
		}
		if mute {
			h.mutedVolumes[c.name] = c.Volume()
			c.setVolume(0)
			continue
		}
		c.setVolume(h.storedVolume(c))
	}
	h.log.Debugf("global mute %v", mute)
}

// SetChannelVolume persists a channel volume and applies it unless muted.
func (h *Helper) SetChannelVolume(name string, volume float64) error {
	c, err := h.Channel(name)
	if err != nil {
		return err
	}
	h.muteMu.Lock()
	defer h.muteMu.Unlock()
	h.mutedVolumes[c.name] = volume
	if h.deps.Settings != nil {
		if err := h.deps.Settings.Set(SettingsNamespace, c.setting, volume); err != nil {
			return err
		}
	}
	if !h.muted {
		c.setVolume(volume)
	}
	return nil
}

// storedVolume returns the persisted volume of c. Without a settings store
// the volume captured at mute time is used.
func (h *Helper) storedVolume(c *Channel) float64 {
	if h.deps.Settings != nil {
		return h.deps.Settings.Get(SettingsNamespace, c.setting)
	}
	if v, ok := h.mutedVolumes[c.name]; ok {
		return v
	}
	return DefaultChannelVolume
}

// ChannelVolume returns the configured volume of a channel, which is kept
// while muted.
func (h *Helper) ChannelVolume(name string) (float64, error) {
	c, err := h.Channel(name)
	if err != nil {
		return 0, err
	}
	h.muteMu.Lock()
	defer h.muteMu.Unlock()
	return h.storedVolume(c), nil
}
