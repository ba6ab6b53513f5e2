// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"bufio"
	"io"
)

// MaxSentenceLength bounds a line accumulated by Scanner. NMEA allows 82
// characters; some receivers exceed it slightly.
const MaxSentenceLength = 128

// Scanner extracts sentence lines from a byte stream that may interleave
// binary frames. Non-printable bytes abandon the current line.
type Scanner struct {
	buf    []byte
	inLine bool
}

// Feed processes one byte and returns a complete line when one ends
func (s *Scanner) Feed(b byte) (string, bool) {
	switch {
	case b == '$':
		s.buf = append(s.buf[:0], b)
		s.inLine = true
	case !s.inLine:
	case b == '\r' || b == '\n':
		s.inLine = false
		if len(s.buf) > 1 {
			return string(s.buf), true
		}
	case b < 0x20 || b > 0x7E:
		s.inLine = false
	default:
		s.buf = append(s.buf, b)
		if len(s.buf) > MaxSentenceLength {
			s.inLine = false
		}
	}
	return "", false
}

// Reader decodes sentences from a line-oriented stream
type Reader struct {
	scanner *bufio.Scanner
	catalog *Catalog
	line    string
}

// NewReader creates a Reader using DefaultCatalog
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r), catalog: DefaultCatalog}
}

// Next returns the next sentence. Decode errors are returned per line and do
// not stop the reader; io.EOF marks the end of the stream.
func (r *Reader) Next() (Sentence, error) {
	for r.scanner.Scan() {
		r.line = r.scanner.Text()
		if r.line == "" {
			continue
		}
		return r.catalog.Decode(r.line)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Line returns the raw text of the last line read
func (r *Reader) Line() string {
	return r.line
}
