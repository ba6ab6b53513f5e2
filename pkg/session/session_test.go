// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/sextant/pkg/nmea"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

// ============================================================
// Test Helpers
// ============================================================

func testConfig() Config {
	return Config{
		ProbeSettle:  time.Millisecond,
		ProbeTimeout: 50 * time.Millisecond,
		AckTimeout:   200 * time.Millisecond,
	}
}

// startSession starts a session against rx and stops it when the test ends
func startSession(t *testing.T, rx *simReceiver, cfg Config) *Session {
	t.Helper()
	s := New(rx.opener(), cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func newReceiver(baud int) *simReceiver {
	rx := newSimReceiver(baud)
	rx.reply(&ubx.NavClock{ITOW: 1000, ClkB: -5, TAcc: 20})
	return rx
}

// eventually polls cond until it holds or a second passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestStop_NeverStarted(t *testing.T) {
	s := New(newReceiver(9600).opener(), testConfig())
	if err := s.Stop(); err != nil {
		t.Errorf("Stop on idle session failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
	if s.State() != Idle {
		t.Errorf("Expected idle, got %s", s.State())
	}
}

func TestStop_Twice(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
	if s.State() != Idle || s.BaudRate() != 0 {
		t.Errorf("Expected idle with no baud rate, got %s at %d", s.State(), s.BaudRate())
	}
	if !rx.allClosed() {
		t.Error("Transport should be closed after Stop")
	}
	if _, err := Poll[*ubx.NavClock](context.Background(), s); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestStart_ProbesDescending(t *testing.T) {
	rx := newReceiver(38400)
	s := startSession(t, rx, testConfig())

	if s.BaudRate() != 38400 {
		t.Errorf("Expected 38400, got %d", s.BaudRate())
	}
	if s.State() != Listening {
		t.Errorf("Expected listening, got %s", s.State())
	}
	if got := rx.openedRates(); !slices.Equal(got, []int{115200, 57600, 38400}) {
		t.Errorf("Unexpected probe order %v", got)
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	s := startSession(t, newReceiver(9600), testConfig())
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStart_NoResponsiveBaudRate(t *testing.T) {
	rx := newReceiver(4800)
	s := New(rx.opener(), testConfig())

	err := s.Start(context.Background())
	if !errors.Is(err, ErrNoResponsiveBaudRate) {
		t.Fatalf("Expected ErrNoResponsiveBaudRate, got %v", err)
	}
	if s.State() != Idle {
		t.Errorf("Expected idle, got %s", s.State())
	}
	if len(rx.openedRates()) != len(DefaultBaudRates) {
		t.Errorf("Expected every candidate probed, got %v", rx.openedRates())
	}
	if !rx.allClosed() {
		t.Error("Every probed transport should be closed")
	}
}

func TestStart_OpenFailure(t *testing.T) {
	rx := newReceiver(9600)
	openErr := errors.New("no such port")
	rx.failOpen = openErr

	s := New(rx.opener(), testConfig())
	if err := s.Start(context.Background()); !errors.Is(err, openErr) {
		t.Errorf("Expected open error, got %v", err)
	}
	if s.State() != Idle {
		t.Errorf("Expected idle, got %s", s.State())
	}
}

func TestStart_Cancelled(t *testing.T) {
	s := New(newReceiver(4800).opener(), testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStop_CancelsStart(t *testing.T) {
	rx := newReceiver(9600)
	cfg := testConfig()
	cfg.BaudRates = []int{115200, 9600}
	cfg.ProbeTimeout = 300 * time.Millisecond
	s := New(rx.opener(), cfg)

	result := make(chan error, 1)
	go func() { result <- s.Start(context.Background()) }()

	eventually(t, "first probe", func() bool { return len(rx.openedRates()) == 1 })
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if s.State() != Idle || s.BaudRate() != 0 {
		t.Errorf("Expected idle with no baud rate after Stop, got %s at %d", s.State(), s.BaudRate())
	}
	if !rx.allClosed() {
		t.Error("Transport should be closed when Stop returns")
	}

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled from Start, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	if got := rx.openedRates(); !slices.Equal(got, []int{115200}) {
		t.Errorf("No rate should be opened after Stop, got %v", got)
	}
	if s.State() != Idle {
		t.Errorf("Expected idle after Start returned, got %s", s.State())
	}
}

func TestReadFailure_LeavesIdle(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	linkErr := errors.New("cable pulled")
	rx.breakLink(linkErr)

	eventually(t, "idle state", func() bool { return s.State() == Idle })
	if !errors.Is(s.Err(), linkErr) {
		t.Errorf("Expected read error from Err, got %v", s.Err())
	}
	if s.BaudRate() != 0 {
		t.Errorf("Expected no baud rate, got %d", s.BaudRate())
	}
	if !rx.allClosed() {
		t.Error("Transport should be closed after a read failure")
	}
	if _, err := Poll[*ubx.NavClock](context.Background(), s); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}

	rx.breakLink(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if s.Err() != nil {
		t.Errorf("Restart should clear Err, got %v", s.Err())
	}
}

// ============================================================
// Port Configuration Tests
// ============================================================

func TestStart_PortConfigWithAck(t *testing.T) {
	rx := newReceiver(9600)
	cfg := testConfig()
	cfg.Port = ubx.NewUARTConfig(1, 115200)
	cfg.WaitPortAck = true

	s := startSession(t, rx, cfg)
	if s.BaudRate() != 115200 {
		t.Errorf("Expected session at 115200, got %d", s.BaudRate())
	}
	if _, err := Poll[*ubx.NavClock](context.Background(), s); err != nil {
		t.Errorf("Poll at new baud rate failed: %v", err)
	}
}

func TestStart_PortConfigFireAndForget(t *testing.T) {
	rx := newReceiver(9600)
	rx.portAck = false
	cfg := testConfig()
	cfg.Port = ubx.NewUARTConfig(1, 57600)

	s := startSession(t, rx, cfg)
	if s.BaudRate() != 57600 {
		t.Errorf("Expected session at 57600, got %d", s.BaudRate())
	}
	if _, err := Poll[*ubx.NavClock](context.Background(), s); err != nil {
		t.Errorf("Poll at new baud rate failed: %v", err)
	}
}

func TestStart_PortConfigRejected(t *testing.T) {
	rx := newReceiver(9600)
	rx.nak[prtKey] = true
	cfg := testConfig()
	cfg.Port = ubx.NewUARTConfig(1, 115200)
	cfg.WaitPortAck = true

	s := New(rx.opener(), cfg)
	if err := s.Start(context.Background()); !errors.Is(err, ErrPortRejected) {
		t.Fatalf("Expected ErrPortRejected, got %v", err)
	}
	if s.State() != Idle || !rx.allClosed() {
		t.Errorf("Rejected start should release the transport, state %s", s.State())
	}
}

// ============================================================
// Poll Tests
// ============================================================

func TestPoll(t *testing.T) {
	rx := newReceiver(9600)
	rx.reply(&ubx.NavStatus{ITOW: 5000, GPSFix: uint8(ubx.Fix3D), Flags: 0x01})
	s := startSession(t, rx, testConfig())

	status, err := Poll[*ubx.NavStatus](context.Background(), s)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if status.ITOW != 5000 || status.Fix() != ubx.Fix3D || !status.FixOK() {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestPoll_NotPollable(t *testing.T) {
	s := startSession(t, newReceiver(9600), testConfig())
	if _, err := Poll[*ubx.MonRxr](context.Background(), s); !errors.Is(err, ubx.ErrNotPollable) {
		t.Errorf("Expected ErrNotPollable, got %v", err)
	}
}

func TestPoll_TimeoutReleasesKey(t *testing.T) {
	s := startSession(t, newReceiver(9600), testConfig())

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := Poll[*ubx.NavDOP](ctx, s)
		cancel()
		if !errors.Is(err, ErrNoResult) {
			t.Fatalf("Poll %d: expected ErrNoResult, got %v", i, err)
		}
	}
}

func TestPoll_AlreadyExpecting(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	// Drain the probe poll
	<-rx.seen

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := Poll[*ubx.NavDOP](ctx, s)
		first <- err
	}()

	dopKey := ubx.KeyOf[*ubx.NavDOP]()
	for k := range rx.seen {
		if k == dopKey {
			break
		}
	}

	if _, err := Poll[*ubx.NavDOP](context.Background(), s); !errors.Is(err, ErrAlreadyExpecting) {
		t.Errorf("Expected ErrAlreadyExpecting, got %v", err)
	}

	if err := s.Abort(context.Background(), dopKey); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if err := <-first; !errors.Is(err, ErrNoResult) {
		t.Errorf("Aborted poll should yield ErrNoResult, got %v", err)
	}
}

func TestPoll_PendingAbortedOnStop(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())
	<-rx.seen

	result := make(chan error, 1)
	go func() {
		_, err := Poll[*ubx.NavDOP](context.Background(), s)
		result <- err
	}()

	dopKey := ubx.KeyOf[*ubx.NavDOP]()
	for k := range rx.seen {
		if k == dopKey {
			break
		}
	}
	s.Stop()

	select {
	case err := <-result:
		if !errors.Is(err, ErrNoResult) {
			t.Errorf("Expected ErrNoResult, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pending poll not released by Stop")
	}
}

// ============================================================
// Configuration Write Tests
// ============================================================

func TestWriteConfig(t *testing.T) {
	rx := newReceiver(9600)
	rateKey := ubx.KeyOf[*ubx.CfgRate]()
	s := startSession(t, rx, testConfig())

	ack, err := s.WriteConfig(context.Background(), &ubx.CfgRate{MeasRate: 200, NavRate: 1})
	if err != nil || !ack {
		t.Errorf("Expected ACK, got %t, %v", ack, err)
	}

	rx.mu.Lock()
	rx.nak[rateKey] = true
	rx.mu.Unlock()

	ack, err = s.WriteConfig(context.Background(), &ubx.CfgRate{MeasRate: 1, NavRate: 1})
	if err != nil || ack {
		t.Errorf("Expected NAK, got %t, %v", ack, err)
	}
}

func TestWriteConfig_Rejected(t *testing.T) {
	s := startSession(t, newReceiver(9600), testConfig())

	if _, err := s.WriteConfig(context.Background(), &ubx.NavClock{}); !errors.Is(err, ubx.ErrNotSendable) {
		t.Errorf("Expected ErrNotSendable, got %v", err)
	}
	if err := s.Transmit(context.Background(), &ubx.MonRxr{}); !errors.Is(err, ubx.ErrNotSendable) {
		t.Errorf("Expected ErrNotSendable, got %v", err)
	}
}

// ============================================================
// Transmit / Unsolicited Tests
// ============================================================

func TestTransmit_FIFO(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())
	before := len(rx.receivedKeys())

	targets := []ubx.Key{
		ubx.KeyOf[*ubx.NavPosLLH](),
		ubx.KeyOf[*ubx.NavStatus](),
		ubx.KeyOf[*ubx.NavSVInfo](),
	}
	for _, k := range targets {
		if err := s.Transmit(context.Background(), ubx.NewCfgMsg(k, 1)); err != nil {
			t.Fatalf("Transmit failed: %v", err)
		}
	}

	eventually(t, "transmitted frames", func() bool {
		return len(rx.receivedKeys()) == before+len(targets)
	})

	// Every CFG-MSG is acknowledged and nobody listens for it
	eventually(t, "unclaimed acknowledgements", func() bool {
		return s.Stats().Unclaimed == uint64(len(targets))
	})

	received := rx.receivedKeys()[before:]
	for i, k := range received {
		if k != ubx.KeyOf[*ubx.CfgMsg]() {
			t.Errorf("Frame %d: expected CFG-MSG, got %s", i, k)
		}
	}
}

func TestTransmit_Order(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	var mu sync.Mutex
	var acked []ubx.Key
	s.OnMessage(func(m ubx.Message) {
		if a, ok := m.(*ubx.AckAck); ok {
			mu.Lock()
			acked = append(acked, ubx.Key{Class: a.ClassID, ID: a.MessageID})
			mu.Unlock()
		}
	})

	want := []ubx.Key{
		ubx.KeyOf[*ubx.CfgMsg](),
		ubx.KeyOf[*ubx.CfgRate](),
		ubx.KeyOf[*ubx.CfgMsg](),
	}
	msgs := []ubx.Message{
		ubx.NewCfgMsg(ubx.KeyOf[*ubx.NavDOP](), 1),
		&ubx.CfgRate{MeasRate: 1000, NavRate: 1},
		ubx.NewCfgMsg(ubx.KeyOf[*ubx.NavDOP](), 0),
	}
	for _, m := range msgs {
		if err := s.Transmit(context.Background(), m); err != nil {
			t.Fatalf("Transmit failed: %v", err)
		}
	}

	eventually(t, "acknowledgements", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(acked) == len(want)
	})
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(acked, want) {
		t.Errorf("Expected acknowledgements in order %v, got %v", want, acked)
	}
}

func TestOnMessage_Unsolicited(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	got := make(chan ubx.Message, 1)
	s.OnMessage(func(m ubx.Message) { got <- m })

	frame, _ := ubx.Encode(&ubx.NavPosLLH{Lat: 481173000, Lon: 115166667})
	rx.inject(append([]byte{0x00, 0xB5, 0x13}, frame...))

	select {
	case m := <-got:
		llh, ok := m.(*ubx.NavPosLLH)
		if !ok || llh.Lat != 481173000 {
			t.Errorf("Unexpected message %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("Unsolicited message not delivered")
	}

	eventually(t, "discarded noise", func() bool {
		return s.Stats().DiscardedBytes == 3
	})
}

func TestStats_AnomalousValues(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())
	s.OnMessage(func(ubx.Message) {})

	bad, _ := ubx.Encode(ubx.NewNavSVInfo(1000, ubx.SVChannel{SVID: 7, Elev: 100, Azim: 45}))
	good, _ := ubx.Encode(ubx.NewNavSVInfo(2000, ubx.SVChannel{SVID: 7, Elev: 45, Azim: 45}))
	rx.inject(append(bad, good...))

	eventually(t, "anomaly count", func() bool {
		st := s.Stats()
		return st.AnomalousValues == 1 && st.ValidFrames >= 2
	})
}

func TestOnSentence_Interleaved(t *testing.T) {
	rx := newReceiver(9600)
	s := startSession(t, rx, testConfig())

	got := make(chan nmea.Sentence, 1)
	s.OnSentence(func(sn nmea.Sentence) { got <- sn })

	frame, _ := ubx.Encode(&ubx.MonRxr{Flags: 1})
	stream := append([]byte(nil), frame...)
	stream = append(stream, "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"...)
	rx.inject(stream)

	select {
	case sn := <-got:
		if sn.Keyword() != "GPGGA" {
			t.Errorf("Unexpected sentence %s", sn.Keyword())
		}
	case <-time.After(time.Second):
		t.Fatal("Sentence not delivered")
	}

	eventually(t, "statistics", func() bool {
		st := s.Stats()
		return st.Sentences == 1 && st.Unclaimed == 1
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{ProbingBaud, "probing"},
		{Configuring, "configuring"},
		{Listening, "listening"},
		{Stopping, "stopping"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
