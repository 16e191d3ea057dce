// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fixedLevels []float32

func (f fixedLevels) Levels(dst []float32) []float32 { return append(dst, f...) }

type captureSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (c *captureSender) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), data...))
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func TestLevelPublisherPacksLevels(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	sender := &captureSender{}
	levels := fixedLevels{0.1, 0.5, 1}
	p, err := NewLevelPublisher(20*time.Millisecond, sender, levels, clock)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Start()

	for i := 1; i <= 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(20 * time.Millisecond)
		deadline := time.Now().Add(time.Second)
		for sender.count() < i && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}

	if sender.count() != 2 {
		t.Fatalf("sent %d packets, want 2", sender.count())
	}
	for i, raw := range sender.packets {
		pkt, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if pkt.Sequence != uint32(i+1) {
			t.Errorf("sequence = %d, want %d", pkt.Sequence, i+1)
		}
		if want := start.Add(time.Duration(i+1) * 20 * time.Millisecond); !pkt.Timestamp.Equal(want) {
			t.Errorf("timestamp = %v, want %v", pkt.Timestamp, want)
		}
		if len(pkt.Levels) != len(levels) {
			t.Fatalf("levels = %v", pkt.Levels)
		}
		for j, v := range levels {
			if pkt.Levels[j] != v {
				t.Errorf("level %d = %v, want %v", j, pkt.Levels[j], v)
			}
		}
	}
}

func TestNewLevelPublisherValidates(t *testing.T) {
	if _, err := NewLevelPublisher(time.Second, nil, fixedLevels{}, nil); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewLevelPublisher(time.Second, &captureSender{}, nil, nil); err == nil {
		t.Error("expected error for nil source")
	}
	p, err := NewLevelPublisher(0, &captureSender{}, fixedLevels{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultInterval)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := Decode(make([]byte, 5)); err == nil {
		t.Error("expected error for short packet")
	}
	raw := make([]byte, HeaderSize+3)
	raw[13] = 1
	if _, err := Decode(raw); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestSenderDeliversDatagram(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer conn.Close()

	s, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Send([]byte("levels")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "levels" {
		t.Errorf("got %q", buf[:n])
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Send([]byte("x")); err == nil {
		t.Error("Send after Close should fail")
	}
}
