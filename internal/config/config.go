// SPDX-License-Identifier: MIT
package config

import "time"

// Boundaries and defaults of the engine configuration.
const (
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 512
	DefaultBackend         = "portaudio"
	DefaultLogLevel        = "info"

	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192

	DefaultBufferCacheBytes = 256 << 20
	DefaultSoundCacheSize   = 256
	DefaultSoundCacheTTL    = 10 * time.Minute
	DefaultAnalysisTimeout  = time.Second
	DefaultAnalysisInterval = time.Second / 60
	DefaultLevelInterval    = 50 * time.Millisecond

	DefaultWebsocketAddr = ":8765"
	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultUDPInterval   = 33 * time.Millisecond
)

// Backends accepted by audio.backend.
var Backends = []string{"portaudio", "oto", "headless"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			SampleRate:       DefaultSampleRate,
			FramesPerBuffer:  DefaultFramesPerBuffer,
			OutputDevice:     MinDeviceID,
			Backend:          DefaultBackend,
			BufferCacheBytes: DefaultBufferCacheBytes,
			AnalysisTimeout:  DefaultAnalysisTimeout,
			AnalysisInterval: DefaultAnalysisInterval,
			LevelInterval:    DefaultLevelInterval,
			SoundCacheSize:   DefaultSoundCacheSize,
			SoundCacheTTL:    DefaultSoundCacheTTL,
			FetchTimeout:     30 * time.Second,
		},
		Settings: SettingsConfig{Path: "settings.yaml"},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			WebsocketAddr:    DefaultWebsocketAddr,
			WebsocketURL:     "ws://127.0.0.1" + DefaultWebsocketAddr + "/ws",
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
		},
		Scene: SceneConfig{PixelsPerUnit: 100},
	}
}
