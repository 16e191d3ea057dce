// SPDX-License-Identifier: MIT

// Package timing provides the cancellable, clock-anchored timeout used by
// sound delays, fades and scheduled callbacks.
package timing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrCancelled is returned by Wait when the timeout was cancelled before it fired.
var ErrCancelled = errors.New("timeout cancelled")

// Timeout fires a callback once its delay has elapsed on the anchor clock,
// unless it is cancelled first. The end instant is fixed at creation; if the
// underlying timer fires before the anchor clock reaches it, the timer is
// re-armed for the remainder.
type Timeout struct {
	clock    clockwork.Clock
	end      time.Time
	callback func()

	mu        sync.Mutex
	timer     clockwork.Timer
	cancelled bool
	fired     bool
	done      chan struct{}
}

// New starts a timeout that invokes callback after delay. A nil callback is
// allowed for pure waits. A non-positive delay fires on the next scheduler turn.
func New(clock clockwork.Clock, delay time.Duration, callback func()) *Timeout {
	t := &Timeout{
		clock:    clock,
		end:      clock.Now().Add(delay),
		callback: callback,
		done:     make(chan struct{}),
	}
	if delay <= 0 {
		go t.fire()
		return t
	}
	t.mu.Lock()
	t.timer = clock.AfterFunc(delay, t.fire)
	t.mu.Unlock()
	return t
}

func (t *Timeout) fire() {
	t.mu.Lock()
	if t.cancelled || t.fired {
		t.mu.Unlock()
		return
	}
	if remaining := t.end.Sub(t.clock.Now()); remaining > 0 {
		t.timer = t.clock.AfterFunc(remaining, t.fire)
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.timer = nil
	cb := t.callback
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
	close(t.done)
}

// Cancel stops the timeout. It is a no-op once the timeout has fired or was
// already cancelled. Returns true if this call cancelled it.
func (t *Timeout) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	close(t.done)
	return true
}

// Cancelled reports whether the timeout was cancelled.
func (t *Timeout) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Fired reports whether the callback has run.
func (t *Timeout) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Done is closed once the timeout has either fired (after its callback
// returned) or been cancelled.
func (t *Timeout) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the timeout fires, is cancelled, or ctx ends.
func (t *Timeout) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		if t.Cancelled() {
			return ErrCancelled
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
