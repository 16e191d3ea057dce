// SPDX-License-Identifier: MIT
package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetFallsBackToDefaults(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get("core", "globalAmbientVolume"); got != 0 {
		t.Errorf("unregistered Get() = %v, want 0", got)
	}
	s.Register("core", "globalAmbientVolume", 0.5)
	if got := s.Get("core", "globalAmbientVolume"); got != 0.5 {
		t.Errorf("Get() = %v, want default 0.5", got)
	}
	if err := s.Set("core", "globalAmbientVolume", 0.8); err != nil {
		t.Fatal(err)
	}
	if got := s.Get("core", "globalAmbientVolume"); got != 0.8 {
		t.Errorf("Get() = %v, want stored 0.8", got)
	}
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("core", "globalPlaylistVolume", 0.25); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Get("core", "globalPlaylistVolume"); got != 0.25 {
		t.Errorf("reopened Get() = %v, want 0.25", got)
	}
}

func TestOpenRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("core: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() of malformed YAML should fail")
	}
}
