// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/sextant/pkg/nmea"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

// command is handed from a caller to the read loop
type command struct {
	expect  *Expectation // registered before frame is written
	frame   []byte
	written chan error // receives the write result when not nil
	abort   *slot
	release *Expectation
}

// runner is one read loop bound to one open transport
type runner struct {
	cancel   context.CancelFunc
	commands chan command
	done     chan struct{}
	closeErr error // set before done is closed
}

// open opens the transport at baud and starts a read loop on it
func (s *Session) open(baud int) error {
	t, err := s.opener.Open(baud)
	if err != nil {
		return fmt.Errorf("session: open at %d baud: %w", baud, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{
		cancel:   cancel,
		commands: make(chan command),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.run = r
	s.baud = baud
	s.mu.Unlock()

	go s.loop(ctx, r, t)
	return nil
}

// halt stops the current read loop and waits for it to release the transport
func (s *Session) halt() error {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.baud = 0
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	r.cancel()
	<-r.done
	return r.closeErr
}

type reader struct {
	s        *Session
	t        Transport
	expect   *Expectations
	decoder  *ubx.Decoder
	scanner  nmea.Scanner
	discards uint64
}

func (s *Session) loop(ctx context.Context, r *runner, t Transport) {
	rd := &reader{
		s:       s,
		t:       t,
		expect:  NewExpectations(),
		decoder: ubx.NewDecoderWithCatalog(s.cfg.Catalog),
	}
	var readErr error
	defer close(r.done)
	defer func() {
		rd.expect.AbortAll()
		r.closeErr = t.Close()
		if readErr != nil {
			s.detach(r, readErr)
		}
	}()

	buf := make([]byte, s.cfg.ReadBufferSize)
	for ctx.Err() == nil {
		rd.drain(r.commands)

		n, err := t.Read(buf)
		if n > 0 {
			rd.feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("transport read failed", zap.Int("baud", s.BaudRate()), zap.Error(err))
				readErr = fmt.Errorf("session: read: %w", err)
			}
			return
		}
	}
}

// detach forgets a read loop that ended on its own. A listening session
// becomes idle; a Start in progress sees its poll fail and moves on.
func (s *Session) detach(r *runner, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != r {
		return
	}
	s.run = nil
	s.baud = 0
	if s.state == Listening {
		s.exitErr = err
		s.state = Idle
	}
}

// drain handles every command already waiting, in arrival order
func (rd *reader) drain(commands <-chan command) {
	for {
		select {
		case c := <-commands:
			rd.handle(c)
		default:
			return
		}
	}
}

func (rd *reader) handle(c command) {
	switch {
	case c.abort != nil:
		rd.expect.Abort(c.abort.key, c.abort.mode)
		return
	case c.release != nil:
		rd.expect.cancel(c.release, ErrNoResult)
		return
	}

	if c.expect != nil {
		if err := rd.expect.Register(c.expect); err != nil {
			c.expect.fulfill(nil, false, err)
			return
		}
	}

	_, err := rd.t.Write(c.frame)
	if err != nil {
		rd.s.log.Warn("transport write failed", zap.Error(err))
		if c.expect != nil {
			rd.expect.cancel(c.expect, fmt.Errorf("session: write: %w", err))
		}
	}
	if c.written != nil {
		c.written <- err
	}
}

func (rd *reader) feed(p []byte) {
	for _, b := range p {
		if line, ok := rd.scanner.Feed(b); ok {
			rd.sentence(line)
		}

		m, err := rd.decoder.DecodeByte(b)
		if err != nil {
			rd.s.log.Debug("frame rejected", zap.Error(err))
			rd.s.updateStats(func(st *ubx.Statistics) { st.Update(nil, err, nil) })
			continue
		}
		if m != nil {
			verrs := ubx.ValidateMessage(m)
			if len(verrs) > 0 {
				rd.s.log.Debug("anomalous values", zap.Stringer("key", m.Key()), zap.Int("issues", len(verrs)))
			}
			rd.s.updateStats(func(st *ubx.Statistics) { st.Update(m, nil, verrs) })
			rd.dispatch(m)
		}
	}

	if d := rd.decoder.Discarded(); d != rd.discards {
		delta := d - rd.discards
		rd.discards = d
		rd.s.updateStats(func(st *ubx.Statistics) { st.DiscardedBytes += delta })
	}
}

func (rd *reader) dispatch(m ubx.Message) {
	if rd.expect.Dispatch(m) {
		return
	}

	rd.s.mu.Lock()
	fn := rd.s.onMessage
	rd.s.mu.Unlock()
	if fn == nil {
		rd.s.updateStats(func(st *ubx.Statistics) { st.Unclaimed++ })
		return
	}
	fn(m)
}

func (rd *reader) sentence(line string) {
	sn, err := rd.s.cfg.Sentences.Decode(line)
	if err != nil {
		rd.s.log.Debug("sentence rejected", zap.String("line", line), zap.Error(err))
		rd.s.updateStats(func(st *ubx.Statistics) { st.SentenceErrors++ })
		return
	}
	rd.s.updateStats(func(st *ubx.Statistics) { st.Sentences++ })

	rd.s.mu.Lock()
	fn := rd.s.onSentence
	rd.s.mu.Unlock()
	if fn != nil {
		fn(sn)
	}
}
