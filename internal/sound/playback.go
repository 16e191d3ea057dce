// SPDX-License-Identifier: MIT
package sound

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"soundhub/internal/codec"
	"soundhub/internal/graph"
	"soundhub/internal/timing"
)

// PlayOptions configure one call to Play. Nil pointer fields keep the value
// from the previous playback.
type PlayOptions struct {
	Delay time.Duration
	// Duration limits how many seconds play. Ignored when looping.
	Duration  *float64
	Fade      time.Duration
	Loop      *bool
	LoopStart *float64
	// LoopEnd of zero loops to the end of the source.
	LoopEnd *float64
	// Offset is the start position in seconds. Defaults to the paused
	// position when resuming, otherwise 0.
	Offset  *float64
	OnEnded func(*Sound)
	Volume  *float64
	// Effects are appended to the persistent chain for this pipeline only.
	Effects []Effect
}

// StopOptions configure Stop.
type StopOptions struct {
	Delay time.Duration
	Fade  time.Duration
	// Volume is the fade-out target. Defaults to 0.
	Volume *float64
}

// Float returns a pointer to v for option fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v for option fields.
func Bool(v bool) *bool { return &v }

type playback struct {
	offset   float64
	duration float64
	delay    time.Duration
	fade     time.Duration
	volume   float64
	effects  []Effect
}

// configureLocked folds o into the persistent settings and derives the
// effective offset and duration.
func (s *Sound) configureLocked(o PlayOptions, resume bool) playback {
	if o.Loop != nil {
		s.loop = *o.Loop
	}
	if o.LoopStart != nil {
		s.loopStart = max(*o.LoopStart, 0)
	}
	if o.LoopEnd != nil {
		s.loopEnd = max(*o.LoopEnd, 0)
	}
	if o.Volume != nil {
		s.volume = *o.Volume
	}
	if o.OnEnded != nil {
		s.onEnded = o.OnEnded
	}

	p := playback{delay: o.Delay, fade: o.Fade, volume: s.volume}
	if resume {
		p.offset = s.pausedTime
	}
	if o.Offset != nil {
		p.offset = max(*o.Offset, 0)
	}
	p.effects = append(append([]Effect(nil), s.effects...), o.Effects...)

	if s.loop {
		p.duration = math.Inf(1)
		if s.loopStart > 0 || s.loopEnd > 0 {
			lo, hi := s.windowLocked()
			p.offset = min(max(p.offset, lo), hi)
		}
		return p
	}
	p.duration = max(s.duration-p.offset, 0)
	if o.Duration != nil && *o.Duration > 0 {
		p.duration = min(p.duration, *o.Duration)
	}
	return p
}

// pipeline is source → input → effects → gain → output. The input node lets
// a resumed source rejoin the existing chain.
type pipeline struct {
	source graph.Source
	input  *graph.Gain
	nodes  []graph.Node
	gain   *graph.Gain
}

func (p *pipeline) teardown() {
	if p.source != nil {
		p.source.OnEnded(nil)
		p.source.Halt()
		p.source.Disconnect()
	}
	p.input.Disconnect()
	for _, n := range p.nodes {
		n.Disconnect()
	}
	p.gain.Disconnect()
}

// Play starts or resumes playback. It is a no-op unless the Sound is Loaded,
// Paused or Stopped.
func (s *Sound) Play(ctx context.Context, o PlayOptions) error {
	s.mu.Lock()
	prev := s.state
	switch prev {
	case Loaded, Paused, Stopped:
	default:
		s.mu.Unlock()
		s.log.Debugf("play ignored while %s", prev)
		return nil
	}
	s.state = Starting
	s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		s.restore(prev)
		return err
	}
	defer s.release()
	return s.start(ctx, prev, o)
}

// restore reverts an abandoned Starting intent.
func (s *Sound) restore(prev State) {
	s.mu.Lock()
	if s.state == Starting {
		s.state = prev
	}
	s.mu.Unlock()
}

func (s *Sound) start(ctx context.Context, prev State, o PlayOptions) error {
	s.mu.Lock()
	if s.state != Starting {
		s.mu.Unlock()
		return nil
	}
	gctx := s.out.Context()
	var err error
	switch {
	case !s.loadedLocked():
		err = ErrNotLoaded
	case gctx == nil:
		err = ErrNoOutput
	}
	if err != nil {
		s.state = prev
		s.mu.Unlock()
		return err
	}
	resume := prev == Paused && s.pipe != nil
	cfg := s.configureLocked(o, resume)
	buf, stream := s.buffer, s.stream
	s.mu.Unlock()

	src, err := s.newSource(ctx, gctx, buf, stream)
	if err != nil {
		s.restore(prev)
		err = fmt.Errorf("failed to start %s: %w", s.Src, err)
		s.report(err)
		return err
	}

	s.mu.Lock()
	if s.state != Starting {
		s.mu.Unlock()
		src.Halt()
		return nil
	}
	s.connectLocked(gctx, src, cfg.effects)
	s.mu.Unlock()

	if cfg.delay > 0 {
		if err := s.waitIn(ctx, cfg.delay, Starting); err != nil && !errors.Is(err, timing.ErrCancelled) {
			s.abandon(prev, src)
			return err
		}
	}

	s.mu.Lock()
	if s.state != Starting {
		s.mu.Unlock()
		s.log.Debugf("start superseded")
		return nil
	}
	now := gctx.CurrentTime()
	s.startTime = now - cfg.offset
	s.pausedTime = 0
	src.Start(now, cfg.offset, cfg.duration)
	gain := s.pipe.gain.Gain()
	if cfg.fade > 0 {
		gain.CancelScheduledValues(now)
		gain.SetValueAtTime(0, now)
		gain.LinearRampToValueAtTime(cfg.volume, now+cfg.fade.Seconds())
	} else {
		gain.SetValue(cfg.volume)
	}
	s.state = Playing
	s.mu.Unlock()

	s.log.Debugf("playing from %.3fs", cfg.offset)
	s.emit(EventPlay)
	return nil
}

// abandon undoes a start interrupted by its context. A resumed pipeline is
// kept so the Sound stays Paused.
func (s *Sound) abandon(prev State, src graph.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Starting {
		return
	}
	src.OnEnded(nil)
	src.Halt()
	src.Disconnect()
	if s.pipe != nil {
		s.pipe.source = nil
		if prev != Paused {
			s.pipe.teardown()
			s.pipe = nil
		}
	}
	s.state = prev
}

func (s *Sound) newSource(ctx context.Context, gctx *graph.Context, buf *graph.Buffer, stream *codec.Handle) (graph.Source, error) {
	if buf != nil {
		return gctx.NewBufferSource(buf), nil
	}
	dec, err := stream.Stream(ctx)
	if err != nil {
		return nil, err
	}
	return gctx.NewStreamSource(dec), nil
}

// connectLocked builds the pipeline if none exists and attaches src to it.
func (s *Sound) connectLocked(gctx *graph.Context, src graph.Source, effects []Effect) {
	if s.pipe == nil {
		p := &pipeline{input: gctx.NewGain(), gain: gctx.NewGain()}
		var tail graph.Node = p.input
		for _, fx := range effects {
			tail = fx.Apply(gctx, tail)
			p.nodes = append(p.nodes, tail)
		}
		tail.Connect(p.gain)
		p.gain.Connect(s.out.Input())
		s.pipe = p
	}
	src.SetLoop(s.loop, s.loopStart, s.loopEnd)
	src.OnEnded(func() { s.sourceEnded(src) })
	src.Connect(s.pipe.input)
	s.pipe.source = src
}

// sourceEnded handles a source reaching its end on its own.
func (s *Sound) sourceEnded(src graph.Source) {
	s.mu.Lock()
	current := s.state == Playing && s.pipe != nil && s.pipe.source == src
	onEnded := s.onEnded
	s.mu.Unlock()
	if !current {
		return
	}
	if err := s.Stop(context.Background(), StopOptions{}); err != nil {
		s.log.Warnf("stop after end: %v", err)
	}
	s.emit(EventEnd)
	if onEnded != nil {
		onEnded(s)
	}
}

// Pause halts playback, keeping the pipeline for a fast resume. Scheduled
// events are cancelled.
func (s *Sound) Pause() error {
	s.mu.Lock()
	if s.state != Playing {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotPlaying, s, st)
	}
	s.pausedTime = s.currentTimeLocked()
	if src := s.pipe.source; src != nil {
		src.OnEnded(nil)
		src.Halt()
		src.Disconnect()
		s.pipe.source = nil
	}
	s.state = Paused
	s.mu.Unlock()

	s.events.CancelAll()
	s.log.Debugf("paused at %.3fs", s.pausedTime)
	s.emit(EventPause)
	return nil
}

// Stop fades out, waits for the delay, then tears the pipeline down. It is a
// no-op unless the Sound is starting, playing or paused. Cancelling ctx cuts
// the fade and delay short; the Sound still stops.
func (s *Sound) Stop(ctx context.Context, o StopOptions) error {
	s.mu.Lock()
	switch s.state {
	case Starting, Playing, Paused:
	default:
		s.mu.Unlock()
		return nil
	}
	wasPlaying := s.state == Playing
	s.state = Stopping
	if s.pipe != nil && s.pipe.source != nil {
		s.pipe.source.OnEnded(nil)
	}
	s.mu.Unlock()

	// Supersede a start waiting out its delay.
	s.waits.CancelAll()

	s.slot <- struct{}{}
	defer s.release()

	s.mu.Lock()
	if s.state != Stopping {
		s.mu.Unlock()
		return nil
	}
	fade := time.Duration(0)
	if s.pipe != nil && wasPlaying && o.Fade > 0 {
		target := 0.0
		if o.Volume != nil {
			target = *o.Volume
		}
		s.rampLocked(target, nil, o.Fade, FadeLinear)
		fade = o.Fade
	}
	s.mu.Unlock()

	if fade > 0 {
		if err := s.waitIn(ctx, fade, Stopping); err != nil {
			s.log.Debugf("stop fade interrupted: %v", err)
		}
	}
	if o.Delay > 0 && ctx.Err() == nil {
		if err := s.waitIn(ctx, o.Delay, Stopping); err != nil {
			s.log.Debugf("stop delay interrupted: %v", err)
		}
		if s.State() != Stopping {
			return nil
		}
	}

	s.mu.Lock()
	if s.pipe != nil {
		s.pipe.teardown()
		s.pipe = nil
	}
	s.startTime, s.pausedTime = 0, 0
	s.state = Stopped
	s.mu.Unlock()

	s.events.CancelAll()
	s.log.Debugf("stopped")
	s.emit(EventStop)
	return nil
}
