// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"soundhub/internal/config"
	applog "soundhub/internal/log"
	"soundhub/pkg/build"
)

// options holds the persistent flags and the configuration they are
// layered over.
type options struct {
	configPath string
	logLevel   string
	backend    string
	device     int
	sampleRate float64
	frames     int
	record     bool
	output     string

	cfg *config.Config
}

// Execute runs the command line with os.Args. ctx is cancelled on
// SIGINT/SIGTERM by the caller.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(o *options) *cobra.Command {
	buildInfo := build.Get()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		newPlayCommand(o),
		newDevicesCommand(o),
		newServeCommand(o),
		newSendCommand(o),
		newMetersCommand(o),
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "f", "",
		"YAML configuration file. Defaults to config.yaml when present.")
	flags.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")

	// Output Device Configuration
	flags.StringVarP(&o.backend, "backend", "B", config.DefaultBackend,
		"Output backend (portaudio, oto, headless)")
	flags.IntVarP(&o.device, "device", "d", config.MinDeviceID,
		"Specify output device ID. Use 'devices' command to see available devices.")
	flags.Float64VarP(&o.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&o.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")

	// Recording Configuration
	flags.BoolVarP(&o.record, "record", "r", false,
		"Record the master mix to a WAV file")
	flags.StringVarP(&o.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav in recording.output_dir")

	return rootCmd
}

// load reads the configuration file and applies the flags the user set
// explicitly on top of it.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("backend") {
		cfg.Audio.Backend = o.backend
	}
	if flags.Changed("device") {
		cfg.Audio.OutputDevice = o.device
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = o.frames
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = o.record
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	o.cfg = cfg
	return nil
}

// recordingPath returns --output or a timestamped file in the recording
// directory, creating the directory.
func (o *options) recordingPath() (string, error) {
	if o.output != "" {
		return o.output, nil
	}
	dir := o.cfg.Recording.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory: %w", err)
	}
	name := "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	return filepath.Join(dir, name), nil
}
