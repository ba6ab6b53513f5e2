// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	// ErrAlreadyExpecting is returned when a key already has a pending expectation
	ErrAlreadyExpecting = errors.New("session: already expecting")
	// ErrNoResult completes an expectation that was aborted or timed out
	ErrNoResult = errors.New("session: no result")
)

// Mode selects what an expectation is keyed on
type Mode uint8

const (
	// ModeType waits for the next message of a type
	ModeType Mode = iota
	// ModeAck waits for the ACK-ACK or ACK-NAK naming a class and message id
	ModeAck
)

func (m Mode) String() string {
	if m == ModeAck {
		return "ack"
	}
	return "type"
}

// Expectation is a single-slot future for one pending response
type Expectation struct {
	key  ubx.Key
	mode Mode

	once sync.Once
	done chan struct{}
	msg  ubx.Message
	ack  bool
	err  error
}

// NewExpectation creates an unregistered expectation
func NewExpectation(key ubx.Key, mode Mode) *Expectation {
	return &Expectation{key: key, mode: mode, done: make(chan struct{})}
}

// Key returns the message key the expectation waits for
func (x *Expectation) Key() ubx.Key { return x.key }

// Mode returns whether the expectation waits for a type or an acknowledgement
func (x *Expectation) Mode() Mode { return x.mode }

// Done is closed once the expectation is fulfilled
func (x *Expectation) Done() <-chan struct{} { return x.done }

func (x *Expectation) fulfill(m ubx.Message, ack bool, err error) {
	x.once.Do(func() {
		x.msg, x.ack, x.err = m, ack, err
		close(x.done)
	})
}

// Wait blocks until the expectation is fulfilled or ctx ends. A cancelled
// context yields ErrNoResult wrapping the context error.
func (x *Expectation) Wait(ctx context.Context) (ubx.Message, error) {
	select {
	case <-x.done:
		return x.msg, x.err
	case <-ctx.Done():
		select {
		case <-x.done:
			return x.msg, x.err
		default:
		}
		return nil, fmt.Errorf("%w: %w", ErrNoResult, ctx.Err())
	}
}

// WaitAck waits for an acknowledgement: true for ACK-ACK, false for ACK-NAK
func (x *Expectation) WaitAck(ctx context.Context) (bool, error) {
	if _, err := x.Wait(ctx); err != nil {
		return false, err
	}
	return x.ack, nil
}

type slot struct {
	key  ubx.Key
	mode Mode
}

// Expectations is the registry of pending expectations, at most one per key
// and mode. It is not safe for concurrent use; a session's read loop owns it.
type Expectations struct {
	pending map[slot]*Expectation
}

// NewExpectations creates an empty registry
func NewExpectations() *Expectations {
	return &Expectations{pending: make(map[slot]*Expectation)}
}

// ExpectType registers interest in the next message with the given key
func (e *Expectations) ExpectType(key ubx.Key) (*Expectation, error) {
	x := NewExpectation(key, ModeType)
	return x, e.Register(x)
}

// ExpectAck registers interest in the acknowledgement of the given key
func (e *Expectations) ExpectAck(key ubx.Key) (*Expectation, error) {
	x := NewExpectation(key, ModeAck)
	return x, e.Register(x)
}

// Register adds an expectation created by NewExpectation
func (e *Expectations) Register(x *Expectation) error {
	s := slot{x.key, x.mode}
	if _, ok := e.pending[s]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrAlreadyExpecting, x.key, x.mode)
	}
	e.pending[s] = x
	return nil
}

// Dispatch fulfills and removes the expectation matching m. Acknowledgements
// match by the class and message id they name, everything else by key.
// It reports whether m was claimed.
func (e *Expectations) Dispatch(m ubx.Message) bool {
	switch v := m.(type) {
	case *ubx.AckAck:
		if e.complete(slot{v.Target(), ModeAck}, m, true, nil) {
			return true
		}
	case *ubx.AckNak:
		if e.complete(slot{v.Target(), ModeAck}, m, false, nil) {
			return true
		}
	}
	return e.complete(slot{m.Key(), ModeType}, m, false, nil)
}

// Abort fulfills the expectation for key with ErrNoResult.
// It reports whether one was pending.
func (e *Expectations) Abort(key ubx.Key, mode Mode) bool {
	return e.complete(slot{key, mode}, nil, false, ErrNoResult)
}

// AbortAll fulfills every pending expectation with ErrNoResult
func (e *Expectations) AbortAll() {
	for s := range e.pending {
		e.complete(s, nil, false, ErrNoResult)
	}
}

// Pending reports whether an expectation is registered for key and mode
func (e *Expectations) Pending(key ubx.Key, mode Mode) bool {
	_, ok := e.pending[slot{key, mode}]
	return ok
}

// Len returns the number of pending expectations
func (e *Expectations) Len() int {
	return len(e.pending)
}

// cancel fulfills x with err if it is still the registered expectation for its slot
func (e *Expectations) cancel(x *Expectation, err error) bool {
	s := slot{x.key, x.mode}
	if e.pending[s] != x {
		return false
	}
	return e.complete(s, nil, false, err)
}

func (e *Expectations) complete(s slot, m ubx.Message, ack bool, err error) bool {
	x, ok := e.pending[s]
	if !ok {
		return false
	}
	delete(e.pending, s)
	x.fulfill(m, ack, err)
	return true
}
