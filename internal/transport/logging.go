// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "soundhub/internal/log"
)

// LoggingSocket implements Socket for single-process use: emitted events are
// logged and dropped, and Deliver injects inbound events as if a peer had sent
// them.
type LoggingSocket struct {
	handlers handlers
}

// NewLoggingSocket creates a new LoggingSocket instance.
func NewLoggingSocket() *LoggingSocket {
	applog.Infof("Transport: Using LoggingSocket")
	return &LoggingSocket{}
}

// Emit logs the event. It never fails.
func (s *LoggingSocket) Emit(event string, payload any, opts EmitOptions) error {
	data, err := json.Marshal(payload)
	if err != nil {
		applog.Debugf("Transport: emit %s (%T, unmarshalable: %v)", event, payload, err)
		return nil
	}
	applog.Debugf("Transport: emit %s %s recipients=%v", event, data, opts.Recipients)
	return nil
}

// On registers h for event.
func (s *LoggingSocket) On(event string, h Handler) {
	s.handlers.on(event, h)
}

// Deliver runs the handlers registered for event and returns how many ran.
func (s *LoggingSocket) Deliver(event string, payload json.RawMessage) int {
	return s.handlers.dispatch(event, payload)
}

// Close is a no-op for LoggingSocket.
func (s *LoggingSocket) Close() error {
	applog.Debugf("Transport: LoggingSocket closed")
	return nil
}

// Ensure LoggingSocket satisfies the interface at compile time.
var _ Socket = (*LoggingSocket)(nil)
