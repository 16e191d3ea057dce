// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"soundhub/internal/output"
)

type fakeMixer struct {
	levels  []float32
	muted   bool
	volumes map[string]float64
}

func (f *fakeMixer) Levels(dst []float32) []float32 { return append(dst, f.levels...) }
func (f *fakeMixer) GlobalMute() bool                { return f.muted }
func (f *fakeMixer) SetGlobalMute(mute bool)         { f.muted = mute }

func (f *fakeMixer) ChannelVolume(name string) (float64, error) {
	v, ok := f.volumes[name]
	if !ok {
		return 0, errors.New("unknown channel")
	}
	return v, nil
}

func (f *fakeMixer) SetChannelVolume(name string, v float64) error {
	f.volumes[name] = v
	return nil
}

func press(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMetersControls(t *testing.T) {
	mixer := &fakeMixer{volumes: map[string]float64{"music": 0.5, "environment": 1}}
	var m tea.Model = NewMetersModel(mixer, []string{"music", "environment"}, 50*time.Millisecond)

	m, _ = m.Update(press("+"))
	if math.Abs(mixer.volumes["music"]-0.55) > 1e-9 {
		t.Errorf("music volume = %v, want 0.55", mixer.volumes["music"])
	}
	m, _ = m.Update(press("down"))
	m, _ = m.Update(press("+"))
	if mixer.volumes["environment"] != 1 {
		t.Errorf("environment volume = %v, want clamped 1", mixer.volumes["environment"])
	}
	m, _ = m.Update(press("-"))
	if math.Abs(mixer.volumes["environment"]-0.95) > 1e-9 {
		t.Errorf("environment volume = %v, want 0.95", mixer.volumes["environment"])
	}
	m, _ = m.Update(press("m"))
	if !mixer.muted {
		t.Error("m should toggle mute")
	}
	if !strings.Contains(m.View(), "MUTED") {
		t.Error("view should show the mute state")
	}
	if _, cmd := m.Update(press("q")); cmd == nil {
		t.Error("q should quit")
	}
}

func TestMetersTickPollsLevels(t *testing.T) {
	mixer := &fakeMixer{
		levels:  []float32{0.1, 0.2, 0.3, 0.4},
		volumes: map[string]float64{"music": 0.5},
	}
	var m tea.Model = NewMetersModel(mixer, []string{"music"}, time.Millisecond)
	m, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if got := m.(MetersModel).levels; len(got) != 4 || got[3] != 0.4 {
		t.Errorf("levels = %v", got)
	}
	view := m.View()
	for _, want := range []string{"music", "bass", "treble", "0.40"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDeviceListSelection(t *testing.T) {
	devices := []output.Device{
		{ID: 0, Name: "HDMI", MaxOutputChannels: 2},
		{ID: 3, Name: "Speakers", MaxOutputChannels: 2, Default: true},
		{ID: 4, Name: "Headphones", MaxOutputChannels: 2},
	}
	list := func() ([]output.Device, error) { return devices, nil }

	var m tea.Model = NewDeviceListModel(list)
	msg := m.Init()()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m, _ = m.Update(msg)
	if !strings.Contains(m.View(), "Speakers") {
		t.Error("view should list devices")
	}
	m, _ = m.Update(press("down"))
	m, cmd := m.Update(press("enter"))
	if cmd == nil {
		t.Error("enter should quit")
	}
	d, ok := m.(DeviceListModel).Chosen()
	if !ok || d.Name != "Headphones" {
		t.Errorf("chosen = %+v, %v; want Headphones", d, ok)
	}
}

func TestDeviceListError(t *testing.T) {
	var m tea.Model = NewDeviceListModel(func() ([]output.Device, error) {
		return nil, errors.New("no host")
	})
	m, _ = m.Update(m.Init()())
	if !strings.Contains(m.View(), "no host") {
		t.Errorf("view = %q", m.View())
	}
}
