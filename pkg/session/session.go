// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs a u-blox receiver link: baud rate detection, optional
// port configuration, and a read loop correlating polls and configuration
// writes with their responses.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/sextant/pkg/nmea"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	ErrNoResponsiveBaudRate = errors.New("session: no responsive baud rate")
	ErrNotRunning           = errors.New("session: not running")
	ErrAlreadyRunning       = errors.New("session: already running")
	ErrNotConfig            = errors.New("session: message is not acknowledged")
	ErrPortRejected         = errors.New("session: port configuration rejected")
)

// DefaultBaudRates are probed fastest first
var DefaultBaudRates = []int{115200, 57600, 38400, 19200, 9600}

const (
	DefaultProbeSettle    = 2 * time.Second
	DefaultProbeTimeout   = 10 * time.Second
	DefaultAckTimeout     = 5 * time.Second
	DefaultReadBufferSize = 1024
)

// State is the lifecycle state of a session
type State int32

const (
	Idle State = iota
	ProbingBaud
	Configuring
	Listening
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ProbingBaud:
		return "probing"
	case Configuring:
		return "configuring"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds session parameters
type Config struct {
	BaudRates    []int         // candidates in probe order
	ProbeKey     ubx.Key       // pollable message used to detect the baud rate; NAV-CLOCK when zero
	ProbeSettle  time.Duration // delay after opening before probing, used as is
	ProbeTimeout time.Duration
	AckTimeout   time.Duration // port configuration acknowledgement

	// Port, when set, is written after the baud rate is found. With
	// WaitPortAck the write must be acknowledged; otherwise the session only
	// waits for the bytes to be sent. Either way the session then reopens at
	// Port.BaudRate.
	Port        *ubx.CfgPrt
	WaitPortAck bool

	Catalog        *ubx.Catalog  // nil for ubx.DefaultCatalog
	Sentences      *nmea.Catalog // nil for nmea.DefaultCatalog
	Logger         *zap.Logger   // nil for a no-op logger
	ReadBufferSize int
}

// DefaultConfig returns the production timings
func DefaultConfig() Config {
	return Config{
		BaudRates:    DefaultBaudRates,
		ProbeSettle:  DefaultProbeSettle,
		ProbeTimeout: DefaultProbeTimeout,
		AckTimeout:   DefaultAckTimeout,
	}
}

func (c Config) withDefaults() Config {
	if len(c.BaudRates) == 0 {
		c.BaudRates = DefaultBaudRates
	}
	if c.ProbeKey == (ubx.Key{}) {
		c.ProbeKey = ubx.KeyOf[*ubx.NavClock]()
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.Catalog == nil {
		c.Catalog = ubx.DefaultCatalog
	}
	if c.Sentences == nil {
		c.Sentences = nmea.DefaultCatalog
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	return c
}

// Session owns one receiver link
type Session struct {
	opener Opener
	cfg    Config
	log    *zap.Logger

	mu         sync.Mutex
	state      State
	baud       int
	run        *runner
	exitErr    error // why the last read loop ended on its own
	onMessage  func(ubx.Message)
	onSentence func(nmea.Sentence)

	// set while Start runs so Stop can cancel it
	cancelStart context.CancelFunc
	starting    chan struct{}

	statsMu sync.Mutex
	stats   *ubx.Statistics
}

// New creates an idle session
func New(opener Opener, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		opener: opener,
		cfg:    cfg,
		log:    cfg.Logger,
		stats:  ubx.NewStatistics(),
	}
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BaudRate returns the baud rate of the open transport, or 0
func (s *Session) BaudRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Stats returns a snapshot of the link statistics
func (s *Session) Stats() ubx.Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return *s.stats
}

// OnMessage sets the callback for messages no expectation claimed. Without a
// callback such messages are dropped and counted as unclaimed.
//
// The callback runs on the read loop and must not wait on the session.
func (s *Session) OnMessage(fn func(ubx.Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnSentence sets the callback for NMEA sentences interleaved on the link.
// It runs on the read loop like OnMessage.
func (s *Session) OnSentence(fn func(nmea.Sentence)) {
	s.mu.Lock()
	s.onSentence = fn
	s.mu.Unlock()
}

// Start detects the baud rate, applies the port configuration if any, and
// leaves the session listening. On failure the session is idle again. A Stop
// issued while Start runs cancels it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = ProbingBaud
	s.exitErr = nil
	s.cancelStart = cancel
	s.starting = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancelStart = nil
		s.starting = nil
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	err := s.probe(ctx)
	if err == nil && s.cfg.Port != nil {
		if err = s.advance(ctx, Configuring); err == nil {
			err = s.configurePort(ctx)
		}
	}
	if err == nil {
		err = s.advance(ctx, Listening)
	}
	if err != nil {
		s.halt()
		s.mu.Lock()
		if s.state != Stopping {
			s.state = Idle
		}
		s.mu.Unlock()
		return err
	}

	s.log.Info("session listening", zap.Int("baud", s.BaudRate()))
	return nil
}

// advance moves Start to st unless Stop or the caller cancelled it
func (s *Session) advance(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = st
	s.log.Debug("session state", zap.Stringer("state", st))
	return nil
}

func (s *Session) probe(ctx context.Context) error {
	for _, baud := range s.cfg.BaudRates {
		if err := s.open(baud); err != nil {
			return err
		}
		s.log.Debug("probing baud rate", zap.Int("baud", baud))

		if s.probeOnce(ctx) {
			s.log.Info("baud rate detected", zap.Int("baud", baud))
			return nil
		}
		s.halt()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrNoResponsiveBaudRate
}

func (s *Session) probeOnce(ctx context.Context) bool {
	if s.cfg.ProbeSettle > 0 {
		select {
		case <-time.After(s.cfg.ProbeSettle):
		case <-ctx.Done():
			return false
		}
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	_, err := s.PollKey(pctx, s.cfg.ProbeKey)
	return err == nil
}

func (s *Session) configurePort(ctx context.Context) error {
	port := s.cfg.Port
	if s.cfg.WaitPortAck {
		actx, cancel := context.WithTimeout(ctx, s.cfg.AckTimeout)
		defer cancel()
		ack, err := s.WriteConfig(actx, port)
		if err != nil {
			return fmt.Errorf("session: configure port: %w", err)
		}
		if !ack {
			return ErrPortRejected
		}
	} else if err := s.WriteConfigNoAck(ctx, port); err != nil {
		return fmt.Errorf("session: configure port: %w", err)
	}

	baud := int(port.BaudRate)
	if baud == 0 || baud == s.BaudRate() {
		return nil
	}
	s.log.Info("switching baud rate", zap.Int("from", s.BaudRate()), zap.Int("to", baud))
	s.halt()
	return s.open(baud)
}

// Stop ends the read loop and releases the transport. Pending polls and
// configuration writes complete with ErrNoResult. A Start in progress is
// cancelled and waited for. Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == Idle && s.run == nil {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	if s.cancelStart != nil {
		s.cancelStart()
	}
	starting := s.starting
	s.mu.Unlock()

	if starting != nil {
		<-starting
	}
	err := s.halt()

	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
	s.log.Info("session stopped")
	return err
}

// Err returns the error that ended the read loop while the session was
// running, or nil. Such a failure leaves the session idle.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// PollKey polls the message with the given key and waits for the reply
func (s *Session) PollKey(ctx context.Context, key ubx.Key) (ubx.Message, error) {
	frame, err := s.cfg.Catalog.PollFrame(key)
	if err != nil {
		return nil, err
	}
	x := NewExpectation(key, ModeType)
	if err := s.send(ctx, command{expect: x, frame: frame}); err != nil {
		return nil, err
	}
	m, err := x.Wait(ctx)
	if errors.Is(err, ErrNoResult) {
		s.release(x)
	}
	return m, err
}

// Poll polls message type T and waits for the reply
func Poll[T ubx.Message](ctx context.Context, s *Session) (T, error) {
	var zero T
	m, err := s.PollKey(ctx, ubx.KeyOf[T]())
	if err != nil {
		return zero, err
	}
	v, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("session: poll %s answered with %T", ubx.KeyOf[T](), m)
	}
	return v, nil
}

// WriteConfig sends a configuration message and waits for its
// acknowledgement: true for ACK-ACK, false for ACK-NAK.
func (s *Session) WriteConfig(ctx context.Context, m ubx.Message) (bool, error) {
	frame, err := s.encode(m, ubx.Config)
	if err != nil {
		return false, err
	}
	x := NewExpectation(m.Key(), ModeAck)
	if err := s.send(ctx, command{expect: x, frame: frame}); err != nil {
		return false, err
	}
	ack, err := x.WaitAck(ctx)
	if errors.Is(err, ErrNoResult) {
		s.release(x)
	}
	return ack, err
}

// WriteConfigNoAck sends a configuration message and waits only until it has
// been written to the transport
func (s *Session) WriteConfigNoAck(ctx context.Context, m ubx.Message) error {
	frame, err := s.encode(m, ubx.Config)
	if err != nil {
		return err
	}
	written := make(chan error, 1)
	if err := s.send(ctx, command{frame: frame, written: written}); err != nil {
		return err
	}
	select {
	case err := <-written:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transmit queues a message for writing and returns without waiting
func (s *Session) Transmit(ctx context.Context, m ubx.Message) error {
	frame, err := s.encode(m, ubx.Sendable)
	if err != nil {
		return err
	}
	return s.send(ctx, command{frame: frame})
}

// Abort completes a pending poll for key with ErrNoResult
func (s *Session) Abort(ctx context.Context, key ubx.Key) error {
	return s.send(ctx, command{abort: &slot{key, ModeType}})
}

func (s *Session) encode(m ubx.Message, need ubx.Flags) ([]byte, error) {
	def, ok := s.cfg.Catalog.Lookup(m.Key())
	if !ok {
		return nil, &ubx.UnknownMessageError{Key: m.Key()}
	}
	if !def.Flags.Has(ubx.Sendable) {
		return nil, fmt.Errorf("%w: %s", ubx.ErrNotSendable, def.Name)
	}
	if !def.Flags.Has(need) {
		return nil, fmt.Errorf("%w: %s", ErrNotConfig, def.Name)
	}
	return s.cfg.Catalog.Encode(m)
}

// send hands a command to the read loop
func (s *Session) send(ctx context.Context, c command) error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}
	select {
	case r.commands <- c:
		return nil
	case <-r.done:
		return ErrNotRunning
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNoResult, ctx.Err())
	}
}

// release removes an expectation the caller stopped waiting for
func (s *Session) release(x *Expectation) {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return
	}
	select {
	case r.commands <- command{release: x}:
	case <-r.done:
	}
}

func (s *Session) updateStats(fn func(*ubx.Statistics)) {
	s.statsMu.Lock()
	fn(s.stats)
	s.statsMu.Unlock()
}
