// SPDX-License-Identifier: MIT

/*
Package audio owns the session's output channels and everything shared
between sounds:
- Three channels (music, environment, interface), opened on the first
  user gesture
- Sound creation with a singleton cache and one-shot playback
- Global mute backed by persisted channel volumes
- Per-channel band analysis and external stream level reports
- Socket broadcast of one-shot sounds
- Mixing the channels for an output device, with optional WAV recording

Playback requested before the unlock is queued and flushed in order.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"soundhub/internal/cache"
	"soundhub/internal/codec"
	"soundhub/internal/graph"
	applog "soundhub/internal/log"
	"soundhub/internal/sound"
	"soundhub/internal/transport"
)

const (
	DefaultSampleRate = 48000
	// AnalysisTimeout disables an analyser nobody has queried for this long.
	AnalysisTimeout = time.Second
	// AnalysisFrameInterval is the analysis loop period, one display frame.
	AnalysisFrameInterval = time.Second / 60
	// LevelInterval is the native tick of the shared level report timer.
	LevelInterval = 50 * time.Millisecond

	DefaultSoundCacheSize = 256
	DefaultSoundCacheTTL  = 10 * time.Minute
)

var (
	// ErrLocked is returned by operations that need the unlocked channels.
	ErrLocked = errors.New("audio: locked until the first user gesture")
	// ErrUnknownChannel is returned for a channel name that does not exist.
	ErrUnknownChannel = errors.New("audio: unknown channel")
	// ErrNoSocket is returned by broadcasts before a socket is attached.
	ErrNoSocket = errors.New("audio: no socket attached")
)

// gestureEvents are the interaction events that unlock audio.
var gestureEvents = map[string]struct{}{
	"click":       {},
	"contextmenu": {},
	"auxclick":    {},
	"keydown":     {},
	"mousedown":   {},
	"pointerdown": {},
	"touchstart":  {},
}

// Settings stores persisted numeric settings.
type Settings interface {
	Get(namespace, key string) float64
	Set(namespace, key string, value float64) error
}

// Config tunes the helper. Zero fields take defaults.
type Config struct {
	SampleRate       float64
	AnalysisTimeout  time.Duration
	AnalysisInterval time.Duration
	LevelInterval    time.Duration
	SoundCacheSize   int
	SoundCacheTTL    time.Duration
	BufferCacheBytes int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = AnalysisTimeout
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = AnalysisFrameInterval
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = LevelInterval
	}
	if c.SoundCacheSize <= 0 {
		c.SoundCacheSize = DefaultSoundCacheSize
	}
	if c.SoundCacheTTL <= 0 {
		c.SoundCacheTTL = DefaultSoundCacheTTL
	}
	return c
}

// Deps are the helper's collaborators. Opener is required.
type Deps struct {
	Opener    codec.Opener
	Settings  Settings
	Spatial   sound.Spatial
	Listeners sound.Listeners
	Reporter  sound.ErrorReporter
	Clock     clockwork.Clock
}

// Helper is the process-wide audio manager.
type Helper struct {
	cfg   Config
	deps  Deps
	clock clockwork.Clock
	log   applog.Component

	channels map[string]*Channel
	buffers  *cache.Buffers
	sounds   *cache.Instances[*sound.Sound]

	unlockOnce sync.Once
	unlocked   chan struct{}
	pendingMu  sync.Mutex
	pending    []func()

	muteMu       sync.Mutex
	muted        bool
	mutedVolumes map[string]float64

	analysisMu   sync.Mutex
	analysisStop chan struct{}

	levelsMu  sync.Mutex
	levelCtx  *graph.Context
	levels    map[string]*levelReport
	levelStop chan struct{}

	socketMu sync.Mutex
	socket   transport.Socket

	renderMu sync.Mutex
	scratch  []float32
	recorder *Recorder
}

// New creates a locked helper. Channels open on the first Gesture.
func New(cfg Config, deps Deps) *Helper {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	h := &Helper{
		cfg:          cfg,
		deps:         deps,
		clock:        deps.Clock,
		log:          applog.Component("AudioHelper"),
		channels:     make(map[string]*Channel, len(ChannelNames)),
		buffers:      cache.NewBuffers(cfg.BufferCacheBytes),
		unlocked:     make(chan struct{}),
		mutedVolumes: make(map[string]float64),
		levels:       make(map[string]*levelReport),
	}
	if h.deps.Reporter == nil {
		h.deps.Reporter = sound.ReporterFunc(func(err error) { h.log.Errorf("%v", err) })
	}
	h.sounds = cache.NewInstances(cfg.SoundCacheSize, cfg.SoundCacheTTL, func(src string, _ *sound.Sound) {
		h.log.Debugf("released cached sound %s", src)
	})
	for _, name := range ChannelNames {
		h.channels[name] = newChannel(name)
	}
	if r, ok := deps.Settings.(interface{ Register(ns, key string, def float64) }); ok {
		for _, key := range settingKeys {
			r.Register(SettingsNamespace, key, DefaultChannelVolume)
		}
	}
	return h
}

// Channel returns the named channel.
func (h *Helper) Channel(name string) (*Channel, error) {
	c, ok := h.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return c, nil
}

// Channels returns the channels in mix order.
func (h *Helper) Channels() []*Channel {
	out := make([]*Channel, len(ChannelNames))
	for i, name := range ChannelNames {
		out[i] = h.channels[name]
	}
	return out
}

// Buffers returns the decoded buffer cache.
func (h *Helper) Buffers() *cache.Buffers { return h.buffers }

// Unlocked reports whether a gesture has unlocked audio.
func (h *Helper) Unlocked() bool {
	select {
	case <-h.unlocked:
		return true
	default:
		return false
	}
}

// AwaitFirstGesture blocks until audio is unlocked. It returns at once
// after the unlock.
func (h *Helper) AwaitFirstGesture(ctx context.Context) error {
	select {
	case <-h.unlocked:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitUnlock implements sound.Gate.
func (h *Helper) AwaitUnlock(ctx context.Context) error { return h.AwaitFirstGesture(ctx) }

// Gesture reports a user interaction event. The first recognised event
// opens the channels and flushes queued playback; it returns true only for
// that call.
func (h *Helper) Gesture(event string) bool {
	if _, ok := gestureEvents[event]; !ok {
		return false
	}
	first := false
	h.unlockOnce.Do(func() {
		first = true
		h.unlock(event)
	})
	return first
}

func (h *Helper) unlock(event string) {
	h.muteMu.Lock()
	for _, c := range h.Channels() {
		if err := c.open(h.cfg.SampleRate, h.clock, h.storedVolume(c)); err != nil {
			h.log.Errorf("%v", err)
		}
	}
	h.muteMu.Unlock()
	levelCtx, err := graph.NewContext(h.cfg.SampleRate, h.clock)
	if err != nil {
		h.log.Errorf("open level analysis context: %v", err)
	}
	h.levelsMu.Lock()
	h.levelCtx = levelCtx
	h.levelsMu.Unlock()

	close(h.unlocked)
	h.log.Infof("audio unlocked by %s", event)

	h.pendingMu.Lock()
	pending := h.pending
	h.pending = nil
	h.pendingMu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// enqueue defers fn until the unlock. It reports false, without queueing,
// when audio is already unlocked.
func (h *Helper) enqueue(fn func()) bool {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	if h.Unlocked() {
		return false
	}
	h.pending = append(h.pending, fn)
	return true
}

// CreateOptions configure Create.
type CreateOptions struct {
	// Channel defaults to Environment.
	Channel string
	// Singleton shares one Sound per source. Defaults to true.
	Singleton       *bool
	Preload         bool
	Autoplay        bool
	AutoplayOptions sound.PlayOptions
	ForceBuffer     bool
}

// Create returns a Sound for src. Singleton sounds come from a cache whose
// entries may be released at any time, in which case a new Sound is made.
func (h *Helper) Create(src string, o CreateOptions) (*sound.Sound, error) {
	singleton := o.Singleton == nil || *o.Singleton
	var s *sound.Sound
	if singleton {
		s, _ = h.sounds.Get(src)
	}
	if s == nil {
		var err error
		if s, err = h.newSound(src, o.Channel, o.ForceBuffer); err != nil {
			return nil, err
		}
		if singleton {
			h.sounds.Set(src, s)
		}
	}

	switch {
	case o.Preload:
		go h.load(s, sound.LoadOptions{Autoplay: o.Autoplay, AutoplayOptions: o.AutoplayOptions})
	case o.Autoplay && s.Loaded():
		go func() {
			if err := s.Play(context.Background(), o.AutoplayOptions); err != nil {
				h.log.Warnf("autoplay %s: %v", src, err)
			}
		}()
	case o.Autoplay:
		go h.load(s, sound.LoadOptions{Autoplay: true, AutoplayOptions: o.AutoplayOptions})
	}
	return s, nil
}

func (h *Helper) load(s *sound.Sound, o sound.LoadOptions) {
	if err := s.Load(context.Background(), o); err != nil {
		h.log.Warnf("load %s: %v", s.Src, err)
	}
}

func (h *Helper) newSound(src, channel string, forceBuffer bool) (*sound.Sound, error) {
	if channel == "" {
		channel = Environment
	}
	c, err := h.Channel(channel)
	if err != nil {
		return nil, err
	}
	deps := sound.Deps{
		Opener:    h.deps.Opener,
		Buffers:   h.buffers,
		Gate:      h,
		Reporter:  h.deps.Reporter,
		Spatial:   h.deps.Spatial,
		Listeners: h.deps.Listeners,
		Clock:     h.clock,
	}
	return sound.New(src, c, deps, sound.Options{ForceBuffer: forceBuffer}), nil
}

// PlayOptions configure the one-shot Play.
type PlayOptions struct {
	// Channel defaults to Environment.
	Channel string
	// Autoplay set to false only loads the sound.
	Autoplay *bool
	Playback sound.PlayOptions
}

// Play creates a transient Sound, loads it and plays it. Before the unlock
// the request is queued and the returned Sound starts once audio unlocks.
// Load failures are reported, not returned.
func (h *Helper) Play(ctx context.Context, src string, o PlayOptions) (*sound.Sound, error) {
	s, err := h.newSound(src, o.Channel, false)
	if err != nil {
		return nil, err
	}
	if h.enqueue(func() {
		go func() {
			if err := h.loadAndPlay(context.Background(), s, o); err != nil {
				h.log.Warnf("queued play %s: %v", src, err)
			}
		}()
	}) {
		h.log.Debugf("queued %s until unlock", src)
		return s, nil
	}
	return s, h.loadAndPlay(ctx, s, o)
}

func (h *Helper) loadAndPlay(ctx context.Context, s *sound.Sound, o PlayOptions) error {
	if err := s.Load(ctx, sound.LoadOptions{}); err != nil {
		return err
	}
	if s.Failed() || (o.Autoplay != nil && !*o.Autoplay) {
		return nil
	}
	return s.Play(ctx, o.Playback)
}

// Preload decodes src into the buffer cache through its singleton Sound.
func (h *Helper) Preload(ctx context.Context, src string) (*sound.Sound, error) {
	s, err := h.Create(src, CreateOptions{})
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, sound.LoadOptions{}); err != nil {
		return s, err
	}
	return s, nil
}

// Render mixes one block of every channel into out as interleaved stereo.
// Before the unlock it renders silence.
func (h *Helper) Render(out []float32) {
	h.renderMu.Lock()
	defer h.renderMu.Unlock()

	clear(out)
	if len(h.scratch) < len(out) {
		h.scratch = make([]float32, len(out))
	}
	tmp := h.scratch[:len(out)]
	for _, c := range h.Channels() {
		c.render(tmp)
		for i, v := range tmp {
			out[i] += v
		}
	}
	if h.recorder != nil {
		if err := h.recorder.Write(out); err != nil {
			h.log.Warnf("recording: %v", err)
		}
	}
}

// SampleRate returns the channels' sample rate.
func (h *Helper) SampleRate() float64 { return h.cfg.SampleRate }

// StartRecording captures the mix to a WAV file until StopRecording.
func (h *Helper) StartRecording(filename string, bitDepth int) error {
	if !h.Unlocked() {
		return ErrLocked
	}
	r := NewRecorder(int(h.cfg.SampleRate), bitDepth)
	if err := r.Start(filename); err != nil {
		return err
	}
	h.renderMu.Lock()
	prev := h.recorder
	h.recorder = r
	h.renderMu.Unlock()
	if prev != nil {
		return prev.Stop()
	}
	return nil
}

// StopRecording finishes the current recording, if any.
func (h *Helper) StopRecording() error {
	h.renderMu.Lock()
	r := h.recorder
	h.recorder = nil
	h.renderMu.Unlock()
	if r == nil {
		return nil
	}
	return r.Stop()
}

// Close stops the shared loops, any recording and the channel contexts.
func (h *Helper) Close() error {
	h.stopAnalysisLoop()
	h.levelsMu.Lock()
	for id, r := range h.levels {
		r.detach()
		delete(h.levels, id)
	}
	h.stopLevelTickerLocked()
	h.levelsMu.Unlock()

	err := h.StopRecording()
	for _, c := range h.Channels() {
		c.close()
	}
	return err
}
