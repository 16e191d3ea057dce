// SPDX-License-Identifier: MIT

// Package udp publishes channel band levels as datagrams.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	applog "soundhub/internal/log"
)

// DefaultInterval is used for non-positive publish intervals.
const DefaultInterval = 16 * time.Millisecond

var publisherLog = applog.Component("LevelPublisher")

// LevelSource appends the current normalised levels to dst.
type LevelSource interface {
	Levels(dst []float32) []float32
}

// PacketSender transmits one encoded packet.
type PacketSender interface {
	Send(data []byte) error
}

// LevelPublisher periodically packs the levels of a LevelSource and sends
// them through a PacketSender.
type LevelPublisher struct {
	sender   PacketSender
	source   LevelSource
	interval time.Duration
	clock    clockwork.Clock

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup

	seq    uint32
	levels []float32
	packet bytes.Buffer
}

// NewLevelPublisher returns a stopped publisher.
func NewLevelPublisher(interval time.Duration, sender PacketSender, source LevelSource, clock clockwork.Clock) (*LevelPublisher, error) {
	if sender == nil {
		return nil, errors.New("LevelPublisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("LevelPublisher: level source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		publisherLog.Warnf("invalid interval provided, defaulting to %s", interval)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LevelPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		clock:    clock,
	}, nil
}

// Start launches the publishing goroutine. It is a no-op when running.
func (p *LevelPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		publisherLog.Warnf("Start called but already running")
		return
	}
	done := make(chan struct{})
	p.done = done
	ticker := p.clock.NewTicker(p.interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		publisherLog.Infof("publishing every %s", p.interval)
		for {
			select {
			case <-ticker.Chan():
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop ends the goroutine and waits for it. It is safe to call repeatedly.
func (p *LevelPublisher) Stop() error {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	close(done)
	p.wg.Wait()
	publisherLog.Infof("stopped after %d packets", p.seq)
	return nil
}

// Close stops the publisher.
func (p *LevelPublisher) Close() error { return p.Stop() }

/*
Packet layout, big endian:

| Field     | Type      | Bytes | Description                  |
|-----------|-----------|-------|------------------------------|
| Sequence  | uint32    | 4     | Monotonically increasing     |
| Timestamp | int64     | 8     | Nanoseconds since the epoch  |
| Count     | uint16    | 2     | Number of levels (N)         |
| Levels    | []float32 | N * 4 | Channel-major band levels    |
*/

// HeaderSize is the byte length of the fixed packet header.
const HeaderSize = 4 + 8 + 2

func (p *LevelPublisher) publish() {
	p.levels = p.source.Levels(p.levels[:0])
	p.seq++

	p.packet.Reset()
	_ = binary.Write(&p.packet, binary.BigEndian, p.seq)
	_ = binary.Write(&p.packet, binary.BigEndian, p.clock.Now().UnixNano())
	_ = binary.Write(&p.packet, binary.BigEndian, uint16(len(p.levels)))
	_ = binary.Write(&p.packet, binary.BigEndian, p.levels)

	if err := p.sender.Send(p.packet.Bytes()); err == nil {
		publisherLog.Debugf("sent packet %d (%d bytes)", p.seq, p.packet.Len())
	}
}

// Packet is a decoded level packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Levels    []float32
}

// Decode parses a level packet.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, errors.New("short level packet")
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != HeaderSize+4*count {
		return Packet{}, errors.New("level packet length mismatch")
	}
	pkt := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12]))),
		Levels:    make([]float32, count),
	}
	if err := binary.Read(bytes.NewReader(data[HeaderSize:]), binary.BigEndian, pkt.Levels); err != nil {
		return Packet{}, err
	}
	return pkt, nil
}
