// SPDX-License-Identifier: MIT
package sound

import (
	"context"
	"fmt"

	"soundhub/internal/codec"
)

// LoadOptions configure Load.
type LoadOptions struct {
	// Autoplay starts playback once loaded without blocking Load.
	Autoplay        bool
	AutoplayOptions PlayOptions
}

// Load prepares the source for playback, waiting for the audio unlock first.
// A load or decode failure leaves the Sound Failed and is sent to the error
// reporter; it is not returned. Only context errors are returned.
func (s *Sound) Load(ctx context.Context, o LoadOptions) error {
	if g := s.deps.Gate; g != nil && !g.Unlocked() {
		s.log.Debugf("waiting for audio unlock")
		if err := g.AwaitUnlock(ctx); err != nil {
			return err
		}
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	loaded := s.loadedLocked()
	if !loaded {
		s.state = Loading
	}
	s.mu.Unlock()

	var err error
	if !loaded {
		err = s.load(ctx)
	}
	s.release()

	if err != nil {
		return ctx.Err()
	}
	if !loaded {
		s.emit(EventLoad)
	}
	if o.Autoplay {
		go func() {
			if err := s.Play(context.Background(), o.AutoplayOptions); err != nil {
				s.log.Warnf("autoplay failed: %v", err)
			}
		}()
	}
	return nil
}

// load runs with the operation slot held.
func (s *Sound) load(ctx context.Context) error {
	if s.deps.Buffers != nil {
		if buf, ok := s.deps.Buffers.Get(s.Src); ok {
			s.mu.Lock()
			s.buffer, s.duration, s.state = buf, buf.Duration(), Loaded
			s.mu.Unlock()
			s.log.Debugf("loaded %s from buffer cache", s.Src)
			return nil
		}
	}

	h, err := codec.OpenHandle(ctx, s.deps.Opener, s.Src)
	if err != nil {
		return s.fail(err)
	}
	info := h.Info()

	if !codec.UseBuffer(info.Duration, s.forceBuffer) {
		s.mu.Lock()
		s.stream, s.duration, s.state = h, info.Duration, Loaded
		s.mu.Unlock()
		s.log.Debugf("streaming %s (%.1fs %s)", s.Src, info.Duration, info.Format)
		return nil
	}

	buf, err := h.Decode(ctx)
	if cerr := h.Close(); cerr != nil {
		s.log.Warnf("release %s: %v", s.Src, cerr)
	}
	if err != nil {
		return s.fail(err)
	}
	if s.deps.Buffers != nil {
		s.deps.Buffers.Set(s.Src, buf)
	}
	s.mu.Lock()
	s.buffer, s.duration, s.state = buf, buf.Duration(), Loaded
	s.mu.Unlock()
	s.log.Debugf("decoded %s (%.1fs %s)", s.Src, buf.Duration(), info.Format)
	return nil
}

func (s *Sound) fail(err error) error {
	err = fmt.Errorf("failed to load %s: %w", s.Src, err)
	s.mu.Lock()
	s.state = Failed
	s.mu.Unlock()
	s.report(err)
	return err
}

// Close stops playback and releases a streamed source, removing any spooled
// download. A streamed Sound must be loaded again before it can play; a
// buffered one keeps its buffer.
func (s *Sound) Close() error {
	if err := s.Stop(context.Background(), StopOptions{}); err != nil {
		return err
	}
	s.slot <- struct{}{}
	defer s.release()

	s.mu.Lock()
	h := s.stream
	s.stream = nil
	if h != nil && s.buffer == nil {
		s.state, s.duration = None, 0
	}
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	s.log.Debugf("released stream %s", s.Src)
	return h.Close()
}
