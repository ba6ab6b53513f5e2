// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nmea decodes NMEA 0183 sentences of the form
// $<KEYWORD>,<field>,...*<XX> into typed records.
package nmea

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Decode parses one sentence using DefaultCatalog
func Decode(line string) (Sentence, error) {
	return DefaultCatalog.Decode(line)
}

// Decode parses one complete sentence. A trailing CR/LF is ignored.
func (c *Catalog) Decode(line string) (Sentence, error) {
	line = strings.TrimRight(line, "\r\n")

	span, want, err := splitSentence(line)
	if err != nil {
		return nil, err
	}
	if got := Checksum(span); got != want {
		return nil, &ChecksumError{Expected: want, Computed: got}
	}

	parts := strings.Split(span, ",")
	def, ok := c.Lookup(parts[0])
	if !ok {
		return nil, &UnknownSentenceError{Keyword: parts[0]}
	}

	rec := def.New()
	for _, f := range def.Fields {
		value := fieldAt(parts, f.Index)
		if value == "" {
			continue
		}
		var dep string
		if f.Dependent > 0 {
			dep = fieldAt(parts, f.Dependent)
		}
		if err := f.parse(rec, value, dep); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// splitSentence checks the $KEYWORD,...*HH grammar and returns the span
// between '$' and '*' with the decoded checksum trailer.
func splitSentence(line string) (string, byte, error) {
	if len(line) < 4 || line[0] != '$' {
		return "", 0, fmt.Errorf("%w: missing '$'", ErrMalformed)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line)-star != 3 {
		return "", 0, fmt.Errorf("%w: missing checksum trailer", ErrMalformed)
	}
	trailer, err := hex.DecodeString(line[star+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad checksum trailer %q", ErrMalformed, line[star+1:])
	}

	span := line[1:star]
	comma := strings.IndexByte(span, ',')
	if comma < 1 {
		return "", 0, fmt.Errorf("%w: missing keyword", ErrMalformed)
	}
	for i := 0; i < comma; i++ {
		if c := span[i]; (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", 0, fmt.Errorf("%w: bad keyword %q", ErrMalformed, span[:comma])
		}
	}
	for i := 0; i < len(span); i++ {
		if c := span[i]; c < 0x20 || c > 0x7E || c == '$' || c == '*' {
			return "", 0, fmt.Errorf("%w: invalid character 0x%02X", ErrMalformed, c)
		}
	}
	return span, trailer[0], nil
}

func fieldAt(parts []string, index int) string {
	if index < len(parts) {
		return parts[index]
	}
	return ""
}
