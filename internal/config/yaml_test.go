// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate || cfg.Audio.Backend != DefaultBackend {
		t.Errorf("expected defaults, got %+v", cfg.Audio)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
audio:
  sample_rate: 44100
  backend: headless
  sound_cache_ttl: 2m
recording:
  bit_depth: 24
scene:
  pixels_per_unit: 50
  walls:
    - from: [0, 0]
      to: [10, 0]
      kind: muffle
  listeners:
    - [5, 5]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Backend != "headless" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Audio.SoundCacheTTL != 2*time.Minute {
		t.Errorf("sound_cache_ttl = %v", cfg.Audio.SoundCacheTTL)
	}
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("unset frames_per_buffer = %d, want default", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Recording.BitDepth != 24 {
		t.Errorf("bit_depth = %d", cfg.Recording.BitDepth)
	}
	if len(cfg.Scene.Walls) != 1 || cfg.Scene.Walls[0].To != [2]float64{10, 0} || cfg.Scene.Walls[0].Kind != "muffle" {
		t.Errorf("walls = %+v", cfg.Scene.Walls)
	}
	if len(cfg.Scene.Listeners) != 1 || cfg.Scene.Listeners[0] != [2]float64{5, 5} {
		t.Errorf("listeners = %+v", cfg.Scene.Listeners)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "100ms")
	t.Setenv("ENV_AUDIO_BACKEND", "oto")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tr := cfg.Transport
	if !tr.UDPEnabled || tr.UDPTargetAddress != "10.0.0.2:7000" || tr.UDPSendInterval != 100*time.Millisecond {
		t.Errorf("transport = %+v", tr)
	}
	if cfg.Audio.Backend != "oto" {
		t.Errorf("backend = %q", cfg.Audio.Backend)
	}
}

func TestLoadConfig_BadEnvValueIgnored(t *testing.T) {
	t.Setenv("ENV_UDP_SEND_INTERVAL", "soon")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Transport.UDPSendInterval != DefaultUDPInterval {
		t.Errorf("interval = %v, want default", cfg.Transport.UDPSendInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"huge buffer", func(c *Config) { c.Audio.FramesPerBuffer = MaxBufferFrames + 1 }, "audio.frames_per_buffer"},
		{"bad device", func(c *Config) { c.Audio.OutputDevice = -2 }, "audio.output_device"},
		{"bad backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"bad bit depth", func(c *Config) { c.Recording.BitDepth = 12 }, "recording.bit_depth"},
		{"udp without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"udp without interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "udp_send_interval"},
		{"bad wall", func(c *Config) { c.Scene.Walls = []WallConfig{{Kind: "door"}} }, "scene.walls[0]"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.substr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error = %v, want substring %q", err, tt.substr)
			}
		})
	}
}
