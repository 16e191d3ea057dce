// SPDX-License-Identifier: MIT

// Package sound implements the per-asset playback controller: a life-cycle
// state machine that loads a source (buffered or streamed), assembles a
// source → effects → gain pipeline into an output channel, and offers
// delays, fades, scheduled callbacks and positional playback on the
// channel's clock.
package sound

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/spatial/r2"

	"soundhub/internal/codec"
	"soundhub/internal/graph"
	applog "soundhub/internal/log"
	"soundhub/internal/timing"
)

// Output is the channel a Sound renders into. Context returns nil until the
// channel exists.
type Output interface {
	Context() *graph.Context
	Input() graph.Node
}

// BufferCache holds decoded buffers keyed by source.
type BufferCache interface {
	Get(src string) (*graph.Buffer, bool)
	Set(src string, buf *graph.Buffer)
}

// Gate blocks loading until audio playback has been unlocked.
type Gate interface {
	Unlocked() bool
	AwaitUnlock(ctx context.Context) error
}

// ErrorReporter receives load and decode failures.
type ErrorReporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) { f(err) }

// Emitter measures how loud a point source is for one listener.
type Emitter interface {
	Measure(listener r2.Vec, easing bool) (volume float64, muffled bool)
}

// Spatial builds emitters for positional playback. Radius is in scene units.
type Spatial interface {
	Emitter(origin r2.Vec, radius float64, walls bool) Emitter
}

// Listeners supplies the positions sounds are heard from.
type Listeners interface {
	ListenerPositions() []r2.Vec
}

// Deps are the collaborators a Sound uses. Opener is required; the rest may
// be nil.
type Deps struct {
	Opener    codec.Opener
	Buffers   BufferCache
	Gate      Gate
	Reporter  ErrorReporter
	Spatial   Spatial
	Listeners Listeners
	// Clock is used for waits before the output has a context.
	Clock clockwork.Clock
}

// Options configure a new Sound.
type Options struct {
	// ForceBuffer decodes the whole source into memory regardless of length.
	ForceBuffer bool
	// Effects are applied on every play, before any per-play effects.
	Effects []Effect
}

var lastID atomic.Int64

// Sound controls playback of one source.
type Sound struct {
	ID  int64
	Src string

	out         Output
	deps        Deps
	forceBuffer bool
	log         applog.Component

	// slot admits one mutating operation at a time. Blocked senders on a
	// channel are served in arrival order.
	slot   chan struct{}
	events *timing.Set
	waits  *timing.Set

	mu         sync.Mutex
	state      State
	buffer     *graph.Buffer
	stream     *codec.Handle
	duration   float64
	pipe       *pipeline
	effects    []Effect
	volume     float64
	loop       bool
	loopStart  float64
	loopEnd    float64
	onEnded    func(*Sound)
	startTime  float64
	pausedTime float64
	listeners  map[Event][]func(*Sound)
}

// New returns an unloaded Sound for src routed to out.
func New(src string, out Output, deps Deps, opts Options) *Sound {
	id := lastID.Add(1)
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	s := &Sound{
		ID:          id,
		Src:         src,
		out:         out,
		deps:        deps,
		forceBuffer: opts.ForceBuffer,
		log:         applog.Component(fmt.Sprintf("Sound[%d]", id)),
		slot:        make(chan struct{}, 1),
		events:      timing.NewSet(),
		waits:       timing.NewSet(),
		effects:     append([]Effect(nil), opts.Effects...),
		volume:      1,
		listeners:   make(map[Event][]func(*Sound)),
	}
	return s
}

func (s *Sound) String() string { return fmt.Sprintf("Sound[%d] %s", s.ID, s.Src) }

// State returns the current life-cycle state.
func (s *Sound) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Playing reports whether the Sound is starting or playing.
func (s *Sound) Playing() bool {
	st := s.State()
	return st == Starting || st == Playing
}

// Loaded reports whether audio data is available for playback.
func (s *Sound) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedLocked()
}

func (s *Sound) loadedLocked() bool { return s.buffer != nil || s.stream != nil }

// Failed reports whether the last load failed.
func (s *Sound) Failed() bool { return s.State() == Failed }

// Buffered reports whether the source was decoded into memory.
func (s *Sound) Buffered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer != nil
}

// Duration returns the source length in seconds, or 0 before loading.
func (s *Sound) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Loop reports whether playback loops.
func (s *Sound) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Volume returns the live gain while a pipeline exists, otherwise the
// configured volume.
func (s *Sound) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe != nil {
		return s.pipe.gain.Gain().Value()
	}
	return s.volume
}

// SetVolume sets the volume immediately, cancelling any fade in progress.
func (s *Sound) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.pipe != nil {
		s.pipe.gain.Gain().SetValue(v)
	}
}

// Effects returns the persistent effect chain.
func (s *Sound) Effects() []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Effect(nil), s.effects...)
}

// SetEffects replaces the persistent effect chain. It applies from the next
// pipeline built.
func (s *Sound) SetEffects(effects ...Effect) {
	s.mu.Lock()
	s.effects = append([]Effect(nil), effects...)
	s.mu.Unlock()
}

// CurrentTime returns the playback position in seconds.
func (s *Sound) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTimeLocked()
}

func (s *Sound) currentTimeLocked() float64 {
	switch s.state {
	case Paused:
		return s.pausedTime
	case Playing, Stopping:
	default:
		return 0
	}
	if s.pipe == nil {
		return s.pausedTime
	}
	elapsed := s.pipe.gain.Context().CurrentTime() - s.startTime
	if s.loop {
		if lo, hi := s.windowLocked(); hi > lo && elapsed >= hi {
			elapsed = lo + math.Mod(elapsed-lo, hi-lo)
		}
		return elapsed
	}
	if s.duration > 0 {
		elapsed = min(elapsed, s.duration)
	}
	return elapsed
}

// windowLocked returns the loop window in seconds. A zero loop end means the
// end of the source.
func (s *Sound) windowLocked() (lo, hi float64) {
	lo, hi = s.loopStart, s.loopEnd
	if hi <= lo || hi > s.duration {
		hi = s.duration
	}
	if lo >= hi {
		lo = 0
	}
	return lo, hi
}

// On registers fn to run after the given event.
func (s *Sound) On(ev Event, fn func(*Sound)) {
	s.mu.Lock()
	s.listeners[ev] = append(s.listeners[ev], fn)
	s.mu.Unlock()
}

func (s *Sound) emit(ev Event) {
	s.mu.Lock()
	fns := slices.Clone(s.listeners[ev])
	s.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (s *Sound) report(err error) {
	if s.deps.Reporter != nil {
		s.deps.Reporter.Report(err)
		return
	}
	s.log.Errorf("%v", err)
}

func (s *Sound) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sound) release() { <-s.slot }

func (s *Sound) clock() clockwork.Clock {
	if c := s.out.Context(); c != nil {
		return c.Clock()
	}
	return s.deps.Clock
}

// Wait blocks for d on the Sound's clock. Stop cancels outstanding waits,
// in which case timing.ErrCancelled is returned.
func (s *Sound) Wait(ctx context.Context, d time.Duration) error {
	to := timing.New(s.clock(), d, nil)
	s.waits.Add(to)
	return s.await(ctx, to)
}

// waitIn waits like Wait but only while the Sound stays in state. Stop
// changes state before cancelling waits, so a wait registered here is
// either cancelled by it or never started.
func (s *Sound) waitIn(ctx context.Context, d time.Duration, state State) error {
	s.mu.Lock()
	if s.state != state {
		s.mu.Unlock()
		return timing.ErrCancelled
	}
	to := timing.New(s.clock(), d, nil)
	s.waits.Add(to)
	s.mu.Unlock()
	return s.await(ctx, to)
}

func (s *Sound) await(ctx context.Context, to *timing.Timeout) error {
	defer s.waits.Remove(to)
	err := to.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		to.Cancel()
	}
	return err
}

func duration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
