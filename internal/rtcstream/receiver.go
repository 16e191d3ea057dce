// SPDX-License-Identifier: MIT
package rtcstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	applog "soundhub/internal/log"
)

// StreamHandler is called with each received audio track. The stream is
// already decoding.
type StreamHandler func(id string, s *TrackStream)

// Receiver answers voice offers and hands their audio tracks to a handler.
type Receiver struct {
	api     *webrtc.API
	handler StreamHandler
	log     applog.Component

	mu    sync.Mutex
	conns []*webrtc.PeerConnection
	ctx   context.Context
	stop  context.CancelFunc
}

// NewReceiver builds a pion API with the default codecs and interceptors.
func NewReceiver(handler StreamHandler) (*Receiver, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	reg := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Receiver{
		api:     webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(reg)),
		handler: handler,
		log:     applog.Component("Receiver"),
		ctx:     ctx,
		stop:    stop,
	}, nil
}

// Accept answers an offer from a peer that sends audio. The returned answer
// carries all gathered candidates.
func (r *Receiver) Accept(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	pc, err := r.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	fail := func(err error) (webrtc.SessionDescription, error) {
		_ = pc.Close()
		return webrtc.SessionDescription{}, err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s, err := NewOpus(track)
		if err != nil {
			r.log.Debugf("ignoring %s track %s", track.Kind(), track.ID())
			return
		}
		id := track.StreamID()
		r.log.Infof("audio track %s (%s)", id, track.Codec().MimeType)
		go func() {
			if err := s.Run(r.ctx); err != nil && r.ctx.Err() == nil {
				r.log.Warnf("track %s ended: %v", id, err)
			}
		}()
		if r.handler != nil {
			r.handler(id, s)
		}
	})

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fail(err)
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(fmt.Errorf("set offer: %w", err))
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(fmt.Errorf("create answer: %w", err))
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(fmt.Errorf("set answer: %w", err))
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	r.mu.Lock()
	r.conns = append(r.conns, pc)
	r.mu.Unlock()
	return *pc.LocalDescription(), nil
}

// Close stops decoding and closes every peer connection.
func (r *Receiver) Close() error {
	r.stop()
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	var firstErr error
	for _, pc := range conns {
		if err := pc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
