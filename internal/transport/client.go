// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	applog "soundhub/internal/log"
)

// Client is a websocket Socket connected to a Hub.
type Client struct {
	conn     *websocket.Conn
	id       string
	handlers handlers

	writeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

// Dial connects to the hub at url (ws://host/ws) and waits for its welcome.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	var hello Envelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	id, err := decodeWelcome(hello)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{conn: conn, id: id, done: make(chan struct{})}
	go c.readLoop()
	applog.Infof("Client: Connected to %s as %s", url, id)
	return c, nil
}

// ID returns the id the hub assigned to this client.
func (c *Client) ID() string { return c.id }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			applog.Debugf("Client: Read ended: %v", err)
			return
		}
		c.handlers.dispatch(env.Event, env.Payload)
	}
}

// Emit sends an event to the hub.
func (c *Client) Emit(event string, payload any, opts EmitOptions) error {
	env, err := NewEnvelope(event, payload, opts)
	if err != nil {
		return err
	}
	env.Sender = c.id

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteJSON(env)
}

// On registers h for event.
func (c *Client) On(event string, h Handler) {
	c.handlers.on(event, h)
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

var _ Socket = (*Client)(nil)
