// SPDX-License-Identifier: MIT
package graph

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

type eventKind int

const (
	setEvent eventKind = iota
	linearEvent
	exponentialEvent
)

type paramEvent struct {
	kind  eventKind
	time  float64
	value float64
}

// Param is an automatable node parameter. Scheduled values are evaluated once
// per quantum against the context timeline.
type Param struct {
	ctx *Context

	mu     sync.Mutex
	value  float64 // Value before the first event.
	events []paramEvent
}

func newParam(ctx *Context, value float64) *Param {
	return &Param{ctx: ctx, value: value}
}

// Value returns the parameter value at the current context time.
func (p *Param) Value() float64 {
	return p.ValueAt(p.ctx.CurrentTime())
}

// SetValue cancels all automation and sets the value immediately.
func (p *Param) SetValue(v float64) {
	p.mu.Lock()
	p.events = nil
	p.value = v
	p.mu.Unlock()
}

// SetValueAtTime schedules an instant change to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: setEvent, time: t, value: v})
}

// LinearRampToValueAtTime schedules a linear ramp from the previous event
// reaching v at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: linearEvent, time: t, value: v})
}

// ExponentialRampToValueAtTime schedules an exponential ramp from the
// previous event reaching v at time t. v must be positive.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) error {
	if v <= 0 || math.IsNaN(v) {
		return fmt.Errorf("exponential ramp target must be positive, got %v", v)
	}
	p.insert(paramEvent{kind: exponentialEvent, time: t, value: v})
	return nil
}

// CancelScheduledValues removes every event scheduled at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
}

func (p *Param) insert(ev paramEvent) {
	now := p.ctx.CurrentTime()

	p.mu.Lock()
	defer p.mu.Unlock()

	// A ramp with nothing before it starts from the value held now.
	if ev.kind != setEvent && len(p.events) == 0 {
		p.events = append(p.events, paramEvent{kind: setEvent, time: min(now, ev.time), value: p.value})
	}

	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > ev.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev

	p.compact(now)
}

// compact folds events that lie entirely in the past into the base value.
// Callers hold p.mu.
func (p *Param) compact(now float64) {
	// Keep the last event at or before now; it anchors any ramp after it.
	last := -1
	for i, ev := range p.events {
		if ev.time > now {
			break
		}
		last = i
	}
	if last <= 0 {
		return
	}
	p.value = p.events[last-1].value
	p.events = p.events[last:]
}

// ValueAt evaluates the automation at context time t.
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	prevTime, prevValue := math.Inf(-1), p.value
	for _, ev := range p.events {
		if ev.time <= t {
			prevTime, prevValue = ev.time, ev.value
			continue
		}
		// ev is the first event in the future.
		if math.IsInf(prevTime, -1) {
			return prevValue
		}
		span := ev.time - prevTime
		frac := (t - prevTime) / span
		switch ev.kind {
		case linearEvent:
			return prevValue + (ev.value-prevValue)*frac
		case exponentialEvent:
			if prevValue <= 0 {
				return prevValue
			}
			return prevValue * math.Pow(ev.value/prevValue, frac)
		default:
			return prevValue
		}
	}
	return prevValue
}
