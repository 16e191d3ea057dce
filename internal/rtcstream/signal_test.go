// SPDX-License-Identifier: MIT
package rtcstream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"soundhub/pkg/utils"
)

type fakeAnswerer struct {
	err error
}

func (f fakeAnswerer) Accept(_ context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if f.err != nil {
		return webrtc.SessionDescription{}, f.err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer to " + offer.SDP}, nil
}

func waitEmitted(t *testing.T, socket *utils.MockSocket) utils.Emitted {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e := socket.Emitted(); len(e) > 0 {
			return e[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no answer emitted")
	return utils.Emitted{}
}

func TestListen(t *testing.T) {
	tests := []struct {
		name      string
		answerer  fakeAnswerer
		from      string
		wantSDP   string
		wantError string
	}{
		{"answer goes to sender", fakeAnswerer{}, "peer-1", "answer to offer", ""},
		{"no sender broadcasts", fakeAnswerer{}, "", "answer to offer", ""},
		{"accept failure", fakeAnswerer{err: errors.New("no audio")}, "peer-2", "", "no audio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			socket := &utils.MockSocket{}
			Listen(context.Background(), socket, tt.answerer)

			offer := Offer{From: tt.from, SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}}
			if n := socket.Deliver(OfferEvent, offer); n != 1 {
				t.Fatalf("Deliver() reached %d handlers, want 1", n)
			}

			e := waitEmitted(t, socket)
			if e.Event != AnswerEvent {
				t.Fatalf("event = %q, want %q", e.Event, AnswerEvent)
			}
			var got Answer
			if err := json.Unmarshal(e.Payload, &got); err != nil {
				t.Fatalf("decode answer: %v", err)
			}
			if got.SDP.SDP != tt.wantSDP || got.Error != tt.wantError {
				t.Errorf("answer = %+v, want sdp %q error %q", got, tt.wantSDP, tt.wantError)
			}
			if tt.from == "" {
				if len(e.Opts.Recipients) != 0 {
					t.Errorf("recipients = %v, want none", e.Opts.Recipients)
				}
			} else if len(e.Opts.Recipients) != 1 || e.Opts.Recipients[0] != tt.from {
				t.Errorf("recipients = %v, want [%s]", e.Opts.Recipients, tt.from)
			}
		})
	}
}

func TestListenIgnoresAfterCancel(t *testing.T) {
	socket := &utils.MockSocket{}
	ctx, cancel := context.WithCancel(context.Background())
	Listen(ctx, socket, fakeAnswerer{})
	cancel()

	socket.Deliver(OfferEvent, Offer{From: "peer"})
	time.Sleep(20 * time.Millisecond)
	if e := socket.Emitted(); len(e) != 0 {
		t.Errorf("emitted %d answers after cancel, want 0", len(e))
	}
}

func TestListenBadPayload(t *testing.T) {
	socket := &utils.MockSocket{}
	Listen(context.Background(), socket, fakeAnswerer{})
	socket.Deliver(OfferEvent, "not an offer")
	time.Sleep(20 * time.Millisecond)
	if e := socket.Emitted(); len(e) != 0 {
		t.Errorf("emitted %d answers for a bad payload, want 0", len(e))
	}
}
