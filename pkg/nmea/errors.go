// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed         = errors.New("nmea: malformed sentence")
	ErrChecksumMismatch  = errors.New("nmea: checksum mismatch")
	ErrUnknownMessage    = errors.New("nmea: unknown sentence")
	ErrInvalidDirection  = errors.New("nmea: invalid direction")
	ErrFieldParse        = errors.New("nmea: field parse error")
	ErrDuplicateSentence = errors.New("nmea: duplicate sentence registration")
	ErrInvalidLayout     = errors.New("nmea: invalid sentence layout")
)

// ChecksumError carries both checksum values of a rejected sentence
type ChecksumError struct {
	Expected byte // trailer found on the wire
	Computed byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("nmea: checksum mismatch: expected %02X, computed %02X", e.Expected, e.Computed)
}

// Unwrap allows errors.Is(err, ErrChecksumMismatch)
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// UnknownSentenceError reports a keyword missing from the catalog
type UnknownSentenceError struct {
	Keyword string
}

func (e *UnknownSentenceError) Error() string {
	return fmt.Sprintf("nmea: unknown sentence %s", e.Keyword)
}

// Unwrap allows errors.Is(err, ErrUnknownMessage)
func (e *UnknownSentenceError) Unwrap() error {
	return ErrUnknownMessage
}

// FieldError reports a field whose text could not be parsed
type FieldError struct {
	Index int
	Name  string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("nmea: field %d (%s) %q: %v", e.Index, e.Name, e.Value, e.Err)
}

// Is matches ErrFieldParse
func (e *FieldError) Is(target error) bool {
	return target == ErrFieldParse
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
