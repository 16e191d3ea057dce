// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "soundhub/internal/log"
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Audio     AudioConfig     `yaml:"audio"`
	Settings  SettingsConfig  `yaml:"settings"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Scene     SceneConfig     `yaml:"scene"`
}

// AudioConfig holds output and engine settings.
type AudioConfig struct {
	SampleRate       float64       `yaml:"sample_rate"`
	FramesPerBuffer  int           `yaml:"frames_per_buffer"`
	OutputDevice     int           `yaml:"output_device"` // -1 for the default device.
	Backend          string        `yaml:"backend"`       // portaudio, oto or headless.
	AssetDir         string        `yaml:"asset_dir"`     // Base for relative sources.
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	BufferCacheBytes int64         `yaml:"buffer_cache_bytes"`
	AnalysisTimeout  time.Duration `yaml:"analysis_timeout"`
	AnalysisInterval time.Duration `yaml:"analysis_frame_interval"`
	LevelInterval    time.Duration `yaml:"level_native_interval"`
	SoundCacheSize   int           `yaml:"sound_cache_size"`
	SoundCacheTTL    time.Duration `yaml:"sound_cache_ttl"`
}

// SettingsConfig locates the persisted volume store.
type SettingsConfig struct {
	Path string `yaml:"path"` // Empty keeps settings in memory.
}

// RecordingConfig holds master-mix recording settings.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig holds socket and telemetry settings.
type TransportConfig struct {
	WebsocketAddr    string        `yaml:"websocket_addr"`
	WebsocketURL     string        `yaml:"websocket_url"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// SceneConfig describes the positional audio scene.
type SceneConfig struct {
	PixelsPerUnit float64      `yaml:"pixels_per_unit"`
	Walls         []WallConfig `yaml:"walls"`
	Listeners     [][2]float64 `yaml:"listeners"`
}

// WallConfig is one wall segment in scene pixels.
type WallConfig struct {
	From [2]float64 `yaml:"from"`
	To   [2]float64 `yaml:"to"`
	Kind string     `yaml:"kind"` // block or muffle.
}

// LoadConfig loads path over the defaults. An empty path tries
// "config.yaml" and falls back to the defaults when it is missing.
// Environment overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %v out of range [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d out of range (0, %d]", a.FramesPerBuffer, MaxBufferFrames))
	}
	if a.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device %d is invalid", a.OutputDevice))
	}
	if !slices.Contains(Backends, a.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of %s", a.Backend, strings.Join(Backends, ", ")))
	}
	if a.LevelInterval <= 0 || a.AnalysisInterval <= 0 {
		errs = append(errs, errors.New("audio analysis intervals must be positive"))
	}
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("recording.bit_depth %d is not 16, 24 or 32", c.Recording.BitDepth))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	for i, w := range c.Scene.Walls {
		if w.Kind != "block" && w.Kind != "muffle" {
			errs = append(errs, fmt.Errorf("scene.walls[%d].kind %q is not block or muffle", i, w.Kind))
		}
	}
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is invalid", c.LogLevel))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables. Unparseable values are ignored
// with a warning.
func (c *Config) applyEnvOverrides() {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
			applog.Infof("configuration: overriding %s from env: %s", name, v)
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", name, v, err)
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", name, v, err)
				return
			}
			*dst = d
		}
	}

	str("ENV_LOG_LEVEL", &c.LogLevel)
	str("ENV_AUDIO_BACKEND", &c.Audio.Backend)
	str("ENV_SETTINGS_PATH", &c.Settings.Path)
	str("ENV_WEBSOCKET_ADDR", &c.Transport.WebsocketAddr)
	str("ENV_WEBSOCKET_URL", &c.Transport.WebsocketURL)
	boolean("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	str("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	duration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
}
