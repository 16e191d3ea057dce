// SPDX-License-Identifier: MIT
package sound

import (
	"context"

	"soundhub/internal/timing"
)

// ScheduledEvent is a callback registered with Schedule.
type ScheduledEvent struct {
	timeout *timing.Timeout
	result  any
}

// Wait blocks until the callback has run and returns its result. A cancelled
// event returns timing.ErrCancelled.
func (e *ScheduledEvent) Wait(ctx context.Context) (any, error) {
	if err := e.timeout.Wait(ctx); err != nil {
		return nil, err
	}
	return e.result, nil
}

// Cancelled reports whether the event was cancelled before firing.
func (e *ScheduledEvent) Cancelled() bool { return e.timeout.Cancelled() }

// Schedule runs fn when playback next reaches playbackTime seconds. The time
// is clamped to the source length; for a looping Sound a time already passed
// is pushed forward by whole loop periods. Pause and Stop cancel every
// scheduled event.
func (s *Sound) Schedule(fn func(*Sound) any, playbackTime float64) *ScheduledEvent {
	s.mu.Lock()
	now := s.currentTimeLocked()
	t := min(max(playbackTime, 0), s.duration)
	if s.loop {
		period := s.duration
		if lo, hi := s.windowLocked(); hi > lo {
			period = hi - lo
		}
		for period > 0 && t < now {
			t += period
		}
	}
	s.mu.Unlock()

	ev := &ScheduledEvent{}
	ev.timeout = timing.New(s.clock(), duration(t-now), func() {
		ev.result = fn(s)
	})
	s.events.Add(ev.timeout)
	go func(to *timing.Timeout) {
		<-to.Done()
		s.events.Remove(to)
	}(ev.timeout)
	return ev
}

// Unschedule cancels ev. It reports whether ev was still pending.
func (s *Sound) Unschedule(ev *ScheduledEvent) bool {
	s.events.Remove(ev.timeout)
	return ev.timeout.Cancel()
}

// UnscheduleAll cancels every pending event and returns how many there were.
func (s *Sound) UnscheduleAll() int {
	return s.events.CancelAll()
}
