// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	clockKey = ubx.KeyOf[*ubx.NavClock]()
	prtKey   = ubx.KeyOf[*ubx.CfgPrt]()
)

// ============================================================
// Registration Tests
// ============================================================

func TestExpectations_AlreadyExpecting(t *testing.T) {
	e := NewExpectations()
	if _, err := e.ExpectType(clockKey); err != nil {
		t.Fatalf("First expectation failed: %v", err)
	}
	if _, err := e.ExpectType(clockKey); !errors.Is(err, ErrAlreadyExpecting) {
		t.Errorf("Expected ErrAlreadyExpecting, got %v", err)
	}

	// An acknowledgement for the same key is a separate slot
	if _, err := e.ExpectAck(clockKey); err != nil {
		t.Errorf("Ack expectation should not conflict with type expectation: %v", err)
	}
	if e.Len() != 2 {
		t.Errorf("Expected 2 pending, got %d", e.Len())
	}
}

// ============================================================
// Dispatch Tests
// ============================================================

func TestExpectations_DispatchFulfillsOnce(t *testing.T) {
	e := NewExpectations()
	x, _ := e.ExpectType(clockKey)

	clock := &ubx.NavClock{ITOW: 1000}
	if !e.Dispatch(clock) {
		t.Fatal("Dispatch should claim the message")
	}
	if e.Pending(clockKey, ModeType) {
		t.Error("Fulfilled expectation should be removed")
	}
	if e.Dispatch(&ubx.NavClock{ITOW: 2000}) {
		t.Error("Second message should not be claimed")
	}

	m, err := x.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if m != clock {
		t.Errorf("Expected the dispatched message, got %+v", m)
	}
}

func TestExpectations_DispatchUnmatched(t *testing.T) {
	e := NewExpectations()
	e.ExpectType(clockKey)
	if e.Dispatch(&ubx.NavStatus{}) {
		t.Error("NAV-STATUS should not match a NAV-CLOCK expectation")
	}
	if !e.Pending(clockKey, ModeType) {
		t.Error("Unmatched expectation should stay pending")
	}
}

func TestExpectations_Ack(t *testing.T) {
	tests := []struct {
		name string
		msg  ubx.Message
		want bool
	}{
		{"ack", &ubx.AckAck{ClassID: ubx.ClassCFG, MessageID: ubx.IDCfgPrt}, true},
		{"nak", &ubx.AckNak{ClassID: ubx.ClassCFG, MessageID: ubx.IDCfgPrt}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpectations()
			x, _ := e.ExpectAck(prtKey)

			if e.Dispatch(&ubx.AckAck{ClassID: ubx.ClassCFG, MessageID: ubx.IDCfgMsg}) {
				t.Error("Acknowledgement for another message should not match")
			}
			if !e.Dispatch(tt.msg) {
				t.Fatal("Acknowledgement should be claimed")
			}

			ack, err := x.WaitAck(context.Background())
			if err != nil || ack != tt.want {
				t.Errorf("WaitAck = %t, %v; want %t", ack, err, tt.want)
			}
		})
	}
}

// ============================================================
// Abort Tests
// ============================================================

func TestExpectations_Abort(t *testing.T) {
	e := NewExpectations()
	x, _ := e.ExpectType(clockKey)

	if !e.Abort(clockKey, ModeType) {
		t.Fatal("Abort should find the pending expectation")
	}
	if e.Abort(clockKey, ModeType) {
		t.Error("Second abort should find nothing")
	}

	m, err := x.Wait(context.Background())
	if m != nil || !errors.Is(err, ErrNoResult) {
		t.Errorf("Expected no result, got %v, %v", m, err)
	}

	// The key is free again
	if _, err := e.ExpectType(clockKey); err != nil {
		t.Errorf("Register after abort failed: %v", err)
	}
}

func TestExpectations_AbortAll(t *testing.T) {
	e := NewExpectations()
	a, _ := e.ExpectType(clockKey)
	b, _ := e.ExpectAck(prtKey)
	e.AbortAll()

	if e.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", e.Len())
	}
	for _, x := range []*Expectation{a, b} {
		select {
		case <-x.Done():
		default:
			t.Errorf("Expectation %s (%s) not completed", x.Key(), x.Mode())
		}
	}
	if _, err := b.WaitAck(context.Background()); !errors.Is(err, ErrNoResult) {
		t.Errorf("Expected ErrNoResult, got %v", err)
	}
}

func TestExpectations_CancelOnlyOwnSlot(t *testing.T) {
	e := NewExpectations()
	stale := NewExpectation(clockKey, ModeType)
	current, _ := e.ExpectType(clockKey)

	if e.cancel(stale, ErrNoResult) {
		t.Error("Cancelling an unregistered expectation should not touch the slot")
	}
	if !e.Pending(clockKey, ModeType) {
		t.Error("Registered expectation was removed")
	}
	if !e.cancel(current, ErrNoResult) {
		t.Error("Cancel of the registered expectation should succeed")
	}
}

func TestExpectation_WaitContext(t *testing.T) {
	x := NewExpectation(clockKey, ModeType)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := x.Wait(ctx)
	if !errors.Is(err, ErrNoResult) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected no result wrapping deadline, got %v", err)
	}
}
