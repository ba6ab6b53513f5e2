// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

// chunk is data sent by the receiver at a baud rate
type chunk struct {
	baud int
	data []byte
}

// simReceiver emulates a receiver listening at a single baud rate. Bytes
// exchanged at any other rate are lost.
type simReceiver struct {
	mu       sync.Mutex
	baud     int
	replies  map[ubx.Key]ubx.Message
	nak      map[ubx.Key]bool
	portAck  bool // acknowledge CFG-PRT before switching baud
	decoder  *ubx.Decoder
	pending  []chunk
	received []ubx.Key
	opens    []int
	ports    []*simPort
	seen     chan ubx.Key
	failOpen error
	failRead error
}

func newSimReceiver(baud int) *simReceiver {
	return &simReceiver{
		baud:    baud,
		replies: make(map[ubx.Key]ubx.Message),
		nak:     make(map[ubx.Key]bool),
		portAck: true,
		decoder: ubx.NewDecoder(),
		seen:    make(chan ubx.Key, 64),
	}
}

func (r *simReceiver) reply(m ubx.Message) {
	r.mu.Lock()
	r.replies[m.Key()] = m
	r.mu.Unlock()
}

func (r *simReceiver) opener() Opener {
	return OpenerFunc(func(baud int) (Transport, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.failOpen != nil {
			return nil, r.failOpen
		}
		r.opens = append(r.opens, baud)
		p := &simPort{rx: r, baud: baud}
		r.ports = append(r.ports, p)
		return p, nil
	})
}

// inject queues unsolicited bytes at the receiver's current baud rate
func (r *simReceiver) inject(data []byte) {
	r.mu.Lock()
	r.pending = append(r.pending, chunk{r.baud, data})
	r.mu.Unlock()
}

// breakLink makes every read fail with err until it is set back to nil
func (r *simReceiver) breakLink(err error) {
	r.mu.Lock()
	r.failRead = err
	r.mu.Unlock()
}

func (r *simReceiver) openedRates() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.opens...)
}

func (r *simReceiver) receivedKeys() []ubx.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ubx.Key(nil), r.received...)
}

func (r *simReceiver) allClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.ports {
		if !p.closed {
			return false
		}
	}
	return true
}

// handle processes one complete frame written by the session; r.mu is held
func (r *simReceiver) handle(frame []byte) {
	key := ubx.Key{Class: frame[2], ID: frame[3]}
	r.received = append(r.received, key)
	select {
	case r.seen <- key:
	default:
	}

	if len(frame) == ubx.FrameOverhead {
		if m, ok := r.replies[key]; ok {
			data, _ := ubx.Encode(m)
			r.pending = append(r.pending, chunk{r.baud, data})
		}
		return
	}

	if key.Class != ubx.ClassCFG {
		return
	}
	var ack ubx.Message = &ubx.AckAck{ClassID: key.Class, MessageID: key.ID}
	if r.nak[key] {
		ack = &ubx.AckNak{ClassID: key.Class, MessageID: key.ID}
	}
	if key != ubx.KeyOf[*ubx.CfgPrt]() || r.portAck {
		data, _ := ubx.Encode(ack)
		r.pending = append(r.pending, chunk{r.baud, data})
	}
	if key == ubx.KeyOf[*ubx.CfgPrt]() && !r.nak[key] {
		m, err := ubx.Decode(frame)
		if err == nil {
			r.baud = int(m.(*ubx.CfgPrt).BaudRate)
		}
	}
}

// simPort is the session side of the link at one baud rate
type simPort struct {
	rx     *simReceiver
	baud   int
	closed bool
}

func (p *simPort) Read(b []byte) (int, error) {
	p.rx.mu.Lock()
	if p.closed {
		p.rx.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if err := p.rx.failRead; err != nil {
		p.rx.mu.Unlock()
		return 0, err
	}
	if len(p.rx.pending) == 0 {
		p.rx.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	c := p.rx.pending[0]
	if c.baud != p.baud {
		p.rx.pending = p.rx.pending[1:]
		p.rx.mu.Unlock()
		return 0, nil
	}
	n := copy(b, c.data)
	if n == len(c.data) {
		p.rx.pending = p.rx.pending[1:]
	} else {
		p.rx.pending[0].data = c.data[n:]
	}
	p.rx.mu.Unlock()
	return n, nil
}

func (p *simPort) Write(b []byte) (int, error) {
	p.rx.mu.Lock()
	defer p.rx.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.baud != p.rx.baud {
		return len(b), nil
	}
	for _, c := range b {
		m, err := p.rx.decoder.DecodeByte(c)
		if m != nil || err != nil {
			p.rx.handle(p.rx.decoder.Frame())
		}
	}
	return len(b), nil
}

func (p *simPort) Close() error {
	p.rx.mu.Lock()
	defer p.rx.mu.Unlock()
	p.closed = true
	return nil
}
