// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed        = errors.New("ubx: malformed frame")
	ErrChecksumMismatch = errors.New("ubx: checksum mismatch")
	ErrUnknownMessage   = errors.New("ubx: unknown message")
	ErrInvalidHeader    = errors.New("ubx: invalid header")
	ErrNotPollable      = errors.New("ubx: message is not pollable")
	ErrNotSendable      = errors.New("ubx: message is not sendable")
	ErrCountMismatch    = errors.New("ubx: repeated field count mismatch")
	ErrDuplicateMessage = errors.New("ubx: duplicate message registration")
)

// ChecksumError carries both checksum values of a rejected frame
type ChecksumError struct {
	Key      Key
	Expected [2]byte // trailer found on the wire
	Computed [2]byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("ubx: checksum mismatch for %s: expected %02X%02X, computed %02X%02X",
		e.Key, e.Expected[0], e.Expected[1], e.Computed[0], e.Computed[1])
}

// Unwrap allows errors.Is(err, ErrChecksumMismatch)
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// UnknownMessageError reports a class/id pair missing from the catalog
type UnknownMessageError struct {
	Key Key
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("ubx: unknown message %s", e.Key)
}

// Unwrap allows errors.Is(err, ErrUnknownMessage)
func (e *UnknownMessageError) Unwrap() error {
	return ErrUnknownMessage
}

// ErrInvalidLayout is returned by Catalog.Register for an inconsistent field table
var ErrInvalidLayout = errors.New("ubx: invalid message layout")
