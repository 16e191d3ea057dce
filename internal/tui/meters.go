// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"soundhub/internal/analysis"
)

// volumeStep is the slider increment of one key press.
const volumeStep = 0.05

// Mixer is the part of the audio helper the meters drive.
type Mixer interface {
	Levels(dst []float32) []float32
	GlobalMute() bool
	SetGlobalMute(mute bool)
	ChannelVolume(name string) (float64, error)
	SetChannelVolume(name string, volume float64) error
}

type tickMsg time.Time

var (
	keyMute    = key.NewBinding(key.WithKeys("m"))
	keyLouder  = key.NewBinding(key.WithKeys("+", "=", "right", "l"))
	keyQuieter = key.NewBinding(key.WithKeys("-", "left", "h"))
)

// MetersModel shows live band levels per channel with volume controls.
type MetersModel struct {
	mixer    Mixer
	channels []string
	interval time.Duration
	bar      progress.Model

	levels   []float32
	selected int
	err      error
}

// NewMetersModel polls mixer every interval for the given channels, which
// must be in the order Levels reports them.
func NewMetersModel(mixer Mixer, channels []string, interval time.Duration) MetersModel {
	return MetersModel{
		mixer:    mixer,
		channels: channels,
		interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
	}
}

func (m MetersModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MetersModel) Init() tea.Cmd { return m.tick() }

func (m MetersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.levels = m.mixer.Levels(m.levels[:0])
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-30))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyUp):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keyDown):
			if m.selected < len(m.channels)-1 {
				m.selected++
			}
		case key.Matches(msg, keyMute):
			m.mixer.SetGlobalMute(!m.mixer.GlobalMute())
		case key.Matches(msg, keyLouder):
			m.err = m.nudge(volumeStep)
		case key.Matches(msg, keyQuieter):
			m.err = m.nudge(-volumeStep)
		}
	}
	return m, nil
}

func (m MetersModel) nudge(delta float64) error {
	if len(m.channels) == 0 {
		return nil
	}
	name := m.channels[m.selected]
	v, err := m.mixer.ChannelVolume(name)
	if err != nil {
		return err
	}
	v = math.Round((v+delta)/volumeStep) * volumeStep
	return m.mixer.SetChannelVolume(name, math.Max(0, math.Min(1, v)))
}

func (m MetersModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Channel Levels"))
	if m.mixer.GlobalMute() {
		sb.WriteString(" " + mutedStyle.Render("MUTED"))
	}
	sb.WriteString("\n\n")

	bands := analysis.Bands()
	for ci, name := range m.channels {
		vol, _ := m.mixer.ChannelVolume(name)
		header := fmt.Sprintf("%-12s volume %3.0f%%", name, vol*100)
		if ci == m.selected {
			header = highlightStyle.Render("▶ " + header)
		} else {
			header = "  " + header
		}
		sb.WriteString(header + "\n")
		for bi, band := range bands {
			var level float64
			if i := ci*len(bands) + bi; i < len(m.levels) {
				level = float64(m.levels[i])
			}
			fmt.Fprintf(&sb, "    %-7s %s %4.2f\n", band.Range().Name, m.bar.ViewAs(level), level)
		}
	}
	if m.err != nil {
		fmt.Fprintf(&sb, "\nError: %v\n", m.err)
	}
	sb.WriteString("\n" + infoStyle.Render("↑/↓: Channel • +/-: Volume • m: Mute • q: Quit"))
	return sb.String()
}

// RunMeters shows the meters until the user quits.
func RunMeters(mixer Mixer, channels []string, interval time.Duration) error {
	_, err := tea.NewProgram(NewMetersModel(mixer, channels, interval), tea.WithAltScreen()).Run()
	return err
}
