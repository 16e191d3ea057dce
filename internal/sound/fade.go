// SPDX-License-Identifier: MIT
package sound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soundhub/internal/timing"
)

// FadeType selects the ramp curve.
type FadeType string

const (
	FadeLinear      FadeType = "linear"
	FadeExponential FadeType = "exponential"
)

// DefaultFadeDuration is used when FadeOptions.Duration is zero.
const DefaultFadeDuration = time.Second

// minExponentialGain stands in for zero at either end of an exponential ramp.
const minExponentialGain = 1e-4

// FadeOptions configure Fade.
type FadeOptions struct {
	Duration time.Duration
	// From overrides the starting gain. Defaults to the current gain.
	From *float64
	Type FadeType
}

// Fade ramps the volume to volume and waits for the ramp to finish. Without
// a pipeline the volume is stored for the next play.
func (s *Sound) Fade(ctx context.Context, volume float64, o FadeOptions) error {
	typ := o.Type
	if typ == "" {
		typ = FadeLinear
	}
	if typ != FadeLinear && typ != FadeExponential {
		return fmt.Errorf("%w: %q", ErrInvalidFadeType, typ)
	}
	d := o.Duration
	if d <= 0 {
		d = DefaultFadeDuration
	}

	s.mu.Lock()
	s.volume = volume
	if s.pipe == nil {
		s.mu.Unlock()
		return nil
	}
	from := s.rampLocked(volume, o.From, d, typ)
	s.mu.Unlock()

	if from == volume {
		return nil
	}
	err := s.Wait(ctx, d)
	if errors.Is(err, timing.ErrCancelled) {
		return nil
	}
	return err
}

// rampLocked replaces any gain automation with a ramp to target over d and
// returns the starting value.
func (s *Sound) rampLocked(target float64, from *float64, d time.Duration, typ FadeType) float64 {
	gain := s.pipe.gain.Gain()
	now := s.pipe.gain.Context().CurrentTime()
	start := gain.Value()
	if from != nil {
		start = *from
	}
	end := now + d.Seconds()
	gain.CancelScheduledValues(now)
	if typ == FadeExponential {
		gain.SetValueAtTime(max(start, minExponentialGain), now)
		if err := gain.ExponentialRampToValueAtTime(max(target, minExponentialGain), end); err != nil {
			s.log.Warnf("fade: %v", err)
		}
		return start
	}
	gain.SetValueAtTime(start, now)
	gain.LinearRampToValueAtTime(target, end)
	return start
}
