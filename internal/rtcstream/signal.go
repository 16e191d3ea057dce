// SPDX-License-Identifier: MIT
package rtcstream

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v3"

	applog "soundhub/internal/log"
	"soundhub/internal/transport"
)

// Socket events carrying the voice session handshake.
const (
	OfferEvent  = "voiceOffer"
	AnswerEvent = "voiceAnswer"
)

// Offer is the payload of OfferEvent. From is the sender's socket id and
// receives the answer.
type Offer struct {
	From string                    `json:"from"`
	SDP  webrtc.SessionDescription `json:"sdp"`
}

// Answer is the payload of AnswerEvent.
type Answer struct {
	SDP   webrtc.SessionDescription `json:"sdp"`
	Error string                    `json:"error,omitempty"`
}

// Answerer accepts a session offer. Receiver implements it.
type Answerer interface {
	Accept(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// Listen answers every OfferEvent arriving on socket until ctx ends. Each
// offer is accepted on its own goroutine and answered to its sender only.
func Listen(ctx context.Context, socket transport.Socket, a Answerer) {
	log := applog.Component("Signaling")
	socket.On(OfferEvent, func(raw json.RawMessage) {
		if ctx.Err() != nil {
			return
		}
		var offer Offer
		if err := json.Unmarshal(raw, &offer); err != nil {
			log.Warnf("bad %s payload: %v", OfferEvent, err)
			return
		}
		var to []string
		if offer.From != "" {
			to = []string{offer.From}
		}
		go func() {
			var reply Answer
			answer, err := a.Accept(ctx, offer.SDP)
			if err != nil {
				log.Warnf("offer from %q: %v", offer.From, err)
				reply.Error = err.Error()
			} else {
				reply.SDP = answer
			}
			if err := socket.Emit(AnswerEvent, reply, transport.EmitOptions{Recipients: to}); err != nil {
				log.Warnf("answer to %q: %v", offer.From, err)
			}
		}()
	})
}
