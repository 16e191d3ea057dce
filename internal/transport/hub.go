// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	applog "soundhub/internal/log"
)

// hubID is the sender id the hub uses for events it emits itself.
const hubID = "hub"

// Hub is a websocket relay. Every connected client is assigned a uuid; an
// envelope received from one client is forwarded to the other clients it is
// addressed to and dispatched to the hub's own handlers. Hub also implements
// Socket so the serving process can play events and emit its own.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[string]*websocket.Conn
	clientsMu sync.Mutex
	broadcast chan Envelope
	handlers  handlers

	server    *http.Server
	closeOnce sync.Once
	done      chan struct{}
}

// NewHub creates a Hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[string]*websocket.Conn),
		broadcast: make(chan Envelope, 256),
		done:      make(chan struct{}),
	}
	go h.handleBroadcasts()
	return h
}

// ListenAndServe serves the hub at /ws on addr in a background goroutine.
func (h *Hub) ListenAndServe(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	h.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		applog.Infof("Hub: Starting websocket server on %s", addr)
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("Hub: Server error: %v", err)
		}
	}()
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Hub: Upgrade error: %v", err)
		return
	}

	id := uuid.NewString()
	hello, _ := NewEnvelope(welcomeEvent, welcome{ID: id}, EmitOptions{})
	hello.Sender = hubID
	// Written before registration so the broadcast loop never races it.
	if err := conn.WriteJSON(hello); err != nil {
		applog.Warnf("Hub: Welcome to %s failed: %v", id, err)
		conn.Close()
		return
	}

	h.clientsMu.Lock()
	h.clients[id] = conn
	total := len(h.clients)
	h.clientsMu.Unlock()
	applog.Infof("Hub: Client %s connected, total: %d", id, total)

	go h.readLoop(id, conn)
}

func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	defer h.drop(id)
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				applog.Debugf("Hub: Read from %s ended: %v", id, err)
			}
			return
		}
		env.Sender = id
		h.handlers.dispatch(env.Event, env.Payload)
		h.enqueue(env)
	}
}

func (h *Hub) drop(id string) {
	h.clientsMu.Lock()
	conn, ok := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Infof("Hub: Client %s disconnected, total: %d", id, total)
	}
}

func (h *Hub) enqueue(env Envelope) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- env:
		return true
	default:
		applog.Warnf("Hub: Broadcast queue full, dropping %s", env.Event)
		return false
	}
}

// handleBroadcasts sends queued envelopes to every addressed client.
func (h *Hub) handleBroadcasts() {
	for {
		select {
		case <-h.done:
			return
		case env := <-h.broadcast:
			h.clientsMu.Lock()
			for id, conn := range h.clients {
				if !env.addressedTo(id) {
					continue
				}
				if err := conn.WriteJSON(env); err != nil {
					applog.Warnf("Hub: Error sending to %s: %v", id, err)
					conn.Close()
					delete(h.clients, id)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// Emit queues an event from the hub itself for delivery to clients.
func (h *Hub) Emit(event string, payload any, opts EmitOptions) error {
	env, err := NewEnvelope(event, payload, opts)
	if err != nil {
		return err
	}
	env.Sender = hubID
	if !h.enqueue(env) {
		select {
		case <-h.done:
			return ErrClosed
		default:
		}
	}
	return nil
}

// On registers h for events received from any client.
func (h *Hub) On(event string, fn Handler) {
	h.handlers.on(event, fn)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and shuts the server down.
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		applog.Infof("Hub: Closing")
		close(h.done)

		h.clientsMu.Lock()
		for _, conn := range h.clients {
			conn.Close()
		}
		h.clients = make(map[string]*websocket.Conn)
		h.clientsMu.Unlock()

		if h.server != nil {
			err = h.server.Close()
		}
	})
	return err
}

// Ensure Hub satisfies the interface.
var _ Socket = (*Hub)(nil)

// decodeWelcome extracts the client id from a welcome envelope.
func decodeWelcome(env Envelope) (string, error) {
	if env.Event != welcomeEvent {
		return "", errors.New("transport: expected welcome, got " + env.Event)
	}
	var w welcome
	if err := json.Unmarshal(env.Payload, &w); err != nil {
		return "", err
	}
	return w.ID, nil
}
