// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/json"
	"fmt"

	"soundhub/internal/sound"
	"soundhub/internal/transport"
)

// Socket event names.
const (
	PlayEvent    = "playAudio"
	PreloadEvent = "preloadAudio"
)

// PlayData is the payload of a one-shot sound broadcast.
type PlayData struct {
	Src        string   `json:"src"`
	Volume     float64  `json:"volume"`
	Loop       bool     `json:"loop"`
	Channel    string   `json:"channel"`
	Recipients []string `json:"recipients,omitempty"`
}

type preloadData struct {
	Src string `json:"src"`
}

// BroadcastOptions configure Broadcast.
type BroadcastOptions struct {
	// Recipients limits delivery to these peers. Empty reaches every peer.
	Recipients []string
	// SkipLocal only sends the event without playing it here.
	SkipLocal bool
}

// ActivateSocketListeners attaches socket for broadcasts and plays or
// preloads sounds announced by other peers.
func (h *Helper) ActivateSocketListeners(socket transport.Socket) {
	h.socketMu.Lock()
	h.socket = socket
	h.socketMu.Unlock()

	socket.On(PlayEvent, func(raw json.RawMessage) {
		data := PlayData{Volume: 1}
		if err := json.Unmarshal(raw, &data); err != nil {
			h.log.Warnf("bad %s payload: %v", PlayEvent, err)
			return
		}
		go func() {
			if _, err := h.playData(context.Background(), data); err != nil {
				h.log.Warnf("remote play %s: %v", data.Src, err)
			}
		}()
	})
	socket.On(PreloadEvent, func(raw json.RawMessage) {
		var data preloadData
		if err := json.Unmarshal(raw, &data); err != nil {
			h.log.Warnf("bad %s payload: %v", PreloadEvent, err)
			return
		}
		go func() {
			if _, err := h.Preload(context.Background(), data.Src); err != nil {
				h.log.Warnf("remote preload %s: %v", data.Src, err)
			}
		}()
	})
}

func (h *Helper) emit(event string, payload any, recipients []string) error {
	h.socketMu.Lock()
	socket := h.socket
	h.socketMu.Unlock()
	if socket == nil {
		return ErrNoSocket
	}
	if err := socket.Emit(event, payload, transport.EmitOptions{Recipients: recipients}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Broadcast asks other peers to play data and, unless SkipLocal, plays it
// here too. The local Sound is returned when one was started.
func (h *Helper) Broadcast(ctx context.Context, data PlayData, o BroadcastOptions) (*sound.Sound, error) {
	data.Recipients = o.Recipients
	if err := h.emit(PlayEvent, data, o.Recipients); err != nil {
		return nil, err
	}
	if o.SkipLocal {
		return nil, nil
	}
	return h.playData(ctx, data)
}

// BroadcastPreload asks every peer, and this one, to preload src.
func (h *Helper) BroadcastPreload(ctx context.Context, src string) error {
	if err := h.emit(PreloadEvent, preloadData{Src: src}, nil); err != nil {
		return err
	}
	_, err := h.Preload(ctx, src)
	return err
}

func (h *Helper) playData(ctx context.Context, data PlayData) (*sound.Sound, error) {
	return h.Play(ctx, data.Src, PlayOptions{
		Channel: data.Channel,
		Playback: sound.PlayOptions{
			Volume: sound.Float(data.Volume),
			Loop:   sound.Bool(data.Loop),
		},
	})
}
