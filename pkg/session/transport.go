// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "io"

// Transport is a duplex byte stream to the receiver. It is owned by a single
// read loop for its lifetime.
//
// Read must return within a bounded read timeout, possibly with zero bytes and
// a nil error, so the loop can service queued writes and cancellation.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens a transport at the given baud rate
type Opener interface {
	Open(baud int) (Transport, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(baud int) (Transport, error)

// Open calls f(baud)
func (f OpenerFunc) Open(baud int) (Transport, error) {
	return f(baud)
}
