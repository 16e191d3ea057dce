// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"soundhub/internal/audio"
	"soundhub/internal/codec"
	"soundhub/internal/config"
	"soundhub/internal/geometry"
	applog "soundhub/internal/log"
	"soundhub/internal/output"
	"soundhub/internal/settings"
	"soundhub/pkg/bitint"
)

// unlockGesture is reported to the helper once the user has started a
// command, which counts as the interaction that allows audio.
const unlockGesture = "keydown"

// app is the audio helper with its collaborators and output sink.
type app struct {
	opts   *options
	cfg    *config.Config
	store  *settings.FileStore
	helper *audio.Helper
	sink   output.Sink
	log    applog.Component

	recording string
}

func newApp(o *options) (*app, error) {
	cfg := o.cfg
	store, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		return nil, err
	}
	scene, err := newScene(cfg.Scene)
	if err != nil {
		return nil, err
	}
	spatial, listeners := audio.SceneDeps(scene)

	helper := audio.New(audio.Config{
		SampleRate:       cfg.Audio.SampleRate,
		AnalysisTimeout:  cfg.Audio.AnalysisTimeout,
		AnalysisInterval: cfg.Audio.AnalysisInterval,
		LevelInterval:    cfg.Audio.LevelInterval,
		SoundCacheSize:   cfg.Audio.SoundCacheSize,
		SoundCacheTTL:    cfg.Audio.SoundCacheTTL,
		BufferCacheBytes: int(cfg.Audio.BufferCacheBytes),
	}, audio.Deps{
		Opener:    codec.NewFetcher(cfg.Audio.AssetDir, cfg.Audio.FetchTimeout),
		Settings:  store,
		Spatial:   spatial,
		Listeners: listeners,
	})

	return &app{
		opts:   o,
		cfg:    cfg,
		store:  store,
		helper: helper,
		log:    applog.Component("App"),
	}, nil
}

// newScene builds the positional scene from configuration. Without
// configured listeners every positional sound is inaudible.
func newScene(sc config.SceneConfig) (*geometry.Scene, error) {
	scene := geometry.NewScene(sc.PixelsPerUnit)
	for i, w := range sc.Walls {
		kind, err := geometry.ParseWallKind(w.Kind)
		if err != nil {
			return nil, fmt.Errorf("scene wall %d: %w", i, err)
		}
		scene.AddWall(geometry.Wall{
			A:    r2.Vec{X: w.From[0], Y: w.From[1]},
			B:    r2.Vec{X: w.To[0], Y: w.To[1]},
			Kind: kind,
		})
	}
	positions := make([]r2.Vec, 0, len(sc.Listeners))
	for _, p := range sc.Listeners {
		positions = append(positions, r2.Vec{X: p[0], Y: p[1]})
	}
	scene.SetListeners(positions...)
	return scene, nil
}

// start unlocks audio, opens the output sink and begins recording when
// enabled.
func (a *app) start() error {
	a.helper.Gesture(unlockGesture)

	frames := bitint.NextPowerOfTwo(a.cfg.Audio.FramesPerBuffer)
	if frames != a.cfg.Audio.FramesPerBuffer {
		a.log.Debugf("rounded %d frames per buffer up to %d", a.cfg.Audio.FramesPerBuffer, frames)
	}
	sink, err := output.Open(a.helper, output.Config{
		Backend:         a.cfg.Audio.Backend,
		SampleRate:      a.cfg.Audio.SampleRate,
		FramesPerBuffer: frames,
		Device:          a.cfg.Audio.OutputDevice,
	})
	if err != nil {
		return err
	}
	if err := sink.Start(); err != nil {
		_ = sink.Close()
		return err
	}
	a.sink = sink

	if a.cfg.Recording.Enabled {
		path, err := a.opts.recordingPath()
		if err != nil {
			return err
		}
		if err := a.helper.StartRecording(path, a.cfg.Recording.BitDepth); err != nil {
			return err
		}
		a.recording = path
		a.log.Infof("recording to %s", path)
	}
	return nil
}

// Close stops any recording, the sink and the helper.
func (a *app) Close() error {
	var errs []error
	if a.recording != "" {
		if err := a.helper.StopRecording(); err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		} else {
			fmt.Printf("\nRecording saved to: %s\n", a.recording)
		}
	}
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	errs = append(errs, a.helper.Close())
	return errors.Join(errs...)
}
