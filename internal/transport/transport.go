// SPDX-License-Identifier: MIT

// Package transport carries small JSON events between soundhub peers. The
// audio helper only depends on the Socket contract; Hub and Client are the
// websocket implementations used by the serve and send commands.
package transport

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrClosed is returned when emitting on a socket that has been closed.
var ErrClosed = errors.New("transport: socket closed")

// Handler receives the raw JSON payload of an event.
type Handler func(payload json.RawMessage)

// EmitOptions narrows delivery of an event.
type EmitOptions struct {
	// Recipients lists peer ids that should receive the event. Empty means
	// every peer except the sender.
	Recipients []string
}

// Socket defines the emit/receive contract used by the audio helper.
// Implementations must be safe for concurrent use.
type Socket interface {
	Emit(event string, payload any, opts EmitOptions) error
	On(event string, h Handler)
	Close() error
}

// Envelope is the wire frame exchanged over websocket connections.
type Envelope struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Recipients []string        `json:"recipients,omitempty"`
	Sender     string          `json:"sender,omitempty"`
}

// welcomeEvent is sent by the hub to a freshly connected client carrying its id.
const welcomeEvent = "welcome"

type welcome struct {
	ID string `json:"id"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event string, payload any, opts EmitOptions) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw, Recipients: opts.Recipients}, nil
}

// addressedTo reports whether a peer with the given id should receive env.
func (e Envelope) addressedTo(id string) bool {
	if id == e.Sender {
		return false
	}
	if len(e.Recipients) == 0 {
		return true
	}
	for _, r := range e.Recipients {
		if r == id {
			return true
		}
	}
	return false
}

// handlers is an event name to handler registry shared by the socket types.
type handlers struct {
	mu sync.RWMutex
	m  map[string][]Handler
}

func (h *handlers) on(event string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m == nil {
		h.m = make(map[string][]Handler)
	}
	h.m[event] = append(h.m[event], fn)
}

func (h *handlers) dispatch(event string, payload json.RawMessage) int {
	h.mu.RLock()
	list := h.m[event]
	h.mu.RUnlock()
	for _, fn := range list {
		fn(payload)
	}
	return len(list)
}
