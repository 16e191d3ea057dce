// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"soundhub/internal/output"
)

// DeviceLister fetches output devices.
type DeviceLister func() ([]output.Device, error)

// DeviceListModel lists output devices and lets the user pick one.
type DeviceListModel struct {
	list          DeviceLister
	devices       []output.Device
	selectedIndex int
	chosen        *output.Device
	viewport      viewport.Model
	ready         bool
	err           error
}

type devicesMsg struct {
	devices []output.Device
}

type errMsg struct {
	err error
}

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "k"))
	keyDown   = key.NewBinding(key.WithKeys("down", "j"))
	keyChoose = key.NewBinding(key.WithKeys("enter"))
)

// NewDeviceListModel creates a model listing the devices returned by list.
func NewDeviceListModel(list DeviceLister) DeviceListModel {
	return DeviceListModel{list: list}
}

// Init fetches the devices.
func (m DeviceListModel) Init() tea.Cmd {
	list := m.list
	return func() tea.Msg {
		devices, err := list()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.Default {
				m.selectedIndex = i
			}
		}
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyUp):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, keyDown):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, keyChoose):
			if len(m.devices) > 0 {
				d := m.devices[m.selectedIndex]
				m.chosen = &d
				return m, tea.Quit
			}
		}
		m.viewport.SetContent(m.renderDevices())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Chosen returns the device picked with enter, if any.
func (m DeviceListModel) Chosen() (output.Device, bool) {
	if m.chosen == nil {
		return output.Device{}, false
	}
	return *m.chosen, true
}

func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Output Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}
	var sb strings.Builder
	for i, d := range m.devices {
		marker := ""
		if d.Default {
			marker = " [default]"
		}
		info := fmt.Sprintf("[%d] %s (%s)%s\n", d.ID, d.Name, d.HostAPI, marker)
		info += fmt.Sprintf("    Output channels: %d, Default sample rate: %.0f Hz\n",
			d.MaxOutputChannels, d.DefaultSampleRate)
		info += fmt.Sprintf("    Latency: Low=%.2fms, High=%.2fms\n", d.LowLatencyMs, d.HighLatencyMs)
		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the device list and returns the chosen device.
func PickDevice(list DeviceLister) (output.Device, bool, error) {
	final, err := tea.NewProgram(NewDeviceListModel(list), tea.WithAltScreen()).Run()
	if err != nil {
		return output.Device{}, false, err
	}
	d, ok := final.(DeviceListModel).Chosen()
	return d, ok, nil
}
