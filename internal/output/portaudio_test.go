// SPDX-License-Identifier: MIT
//go:build !headless

package output

import (
	"strings"
	"testing"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Errorf("Failed to terminate PortAudio: %v", err)
		}
	})
}

func TestDevices(t *testing.T) {
	setupPortAudio(t)

	devices, err := Devices()
	if err != nil {
		t.Fatalf("Devices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No output devices found on system")
	}
	for _, d := range devices {
		if d.Name == "" {
			t.Errorf("Device %d has empty name", d.ID)
		}
		if d.MaxOutputChannels <= 0 {
			t.Errorf("Device %d listed without output channels", d.ID)
		}
	}
}

func TestOutputDeviceRejectsBadIDs(t *testing.T) {
	setupPortAudio(t)

	for _, id := range []int{-2, 1 << 20} {
		_, err := outputDevice(id)
		if err == nil || !strings.Contains(err.Error(), "invalid device ID") {
			t.Errorf("outputDevice(%d) err = %v", id, err)
		}
	}
}
