// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame wraps a payload in UBX framing: sync bytes, class, id,
// little-endian length, payload and checksum.
func EncodeFrame(k Key, payload []byte) []byte {
	frame := make([]byte, 0, FrameOverhead+len(payload))
	frame = append(frame, Sync1, Sync2, k.Class, k.ID)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)
	a, b := Checksum(frame[2:])
	return append(frame, a, b)
}

// Encode serializes a message into a complete frame
func (c *Catalog) Encode(m Message) ([]byte, error) {
	def, ok := c.Lookup(m.Key())
	if !ok {
		return nil, &UnknownMessageError{Key: m.Key()}
	}
	payload, err := def.MarshalPayload(m)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(def.Key, payload), nil
}

// Decode parses a complete frame into a message.
// Checks run in order: sync bytes, catalog lookup, length, checksum, fields.
func (c *Catalog) Decode(frame []byte) (Message, error) {
	if len(frame) < 2 || frame[0] != Sync1 || frame[1] != Sync2 {
		return nil, ErrInvalidHeader
	}
	if len(frame) < FrameOverhead {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a frame", ErrMalformed, len(frame))
	}

	key := Key{Class: frame[2], ID: frame[3]}
	def, ok := c.LookupReceivable(key)
	if !ok {
		return nil, &UnknownMessageError{Key: key}
	}

	length := int(binary.LittleEndian.Uint16(frame[4:6]))
	if len(frame) != FrameOverhead+length {
		return nil, fmt.Errorf("%w: %s declares %d payload bytes, frame carries %d",
			ErrMalformed, def.Name, length, len(frame)-FrameOverhead)
	}

	end := HeaderSize + length
	a, b := Checksum(frame[2:end])
	if frame[end] != a || frame[end+1] != b {
		return nil, &ChecksumError{
			Key:      key,
			Expected: [2]byte{frame[end], frame[end+1]},
			Computed: [2]byte{a, b},
		}
	}

	m := def.New()
	if err := def.UnmarshalPayload(m, frame[HeaderSize:end]); err != nil {
		return nil, err
	}
	return m, nil
}

// PollFrame returns the cached zero-payload poll request for a pollable message.
// The returned slice is shared and must not be modified.
func (c *Catalog) PollFrame(k Key) ([]byte, error) {
	def, ok := c.Lookup(k)
	if !ok {
		return nil, &UnknownMessageError{Key: k}
	}
	return def.PollFrame()
}

// PollFrame returns the cached zero-payload poll request for this message
func (d *Definition) PollFrame() ([]byte, error) {
	if !d.Flags.Has(Pollable) {
		return nil, fmt.Errorf("%w: %s", ErrNotPollable, d.Name)
	}
	d.pollOnce.Do(func() {
		d.pollFrame = EncodeFrame(d.Key, nil)
	})
	return d.pollFrame, nil
}

// MarshalPayload writes the message fields in ordinal order
func (d *Definition) MarshalPayload(m Message) ([]byte, error) {
	if m.Key() != d.Key {
		return nil, fmt.Errorf("ubx: %s definition cannot encode %s", d.Name, m.Key())
	}

	buf := make([]byte, 0, d.size)
	for _, f := range d.Fields {
		if f.Kind != KindRepeated {
			buf = appendValue(buf, f.Kind, f.get(m))
			continue
		}

		n := f.length(m)
		count := d.Fields[d.countIdx].get(m)
		if uint64(n) != count {
			return nil, fmt.Errorf("%w: %s has %d %s but %s is %d",
				ErrCountMismatch, d.Name, n, f.Name, d.Fields[d.countIdx].Name, count)
		}
		for i := 0; i < n; i++ {
			e := f.elem(m, i)
			for _, sf := range f.Item {
				buf = appendValue(buf, sf.Kind, sf.get(e))
			}
		}
	}
	return buf, nil
}

// UnmarshalPayload populates m from a payload. Trailing bytes beyond the
// declared layout are ignored.
func (d *Definition) UnmarshalPayload(m Message, payload []byte) error {
	off := 0
	for _, f := range d.Fields {
		if f.Kind != KindRepeated {
			size := f.Kind.Size()
			if len(payload)-off < size {
				return fmt.Errorf("%w: %s payload truncated at %s (%d bytes)", ErrMalformed, d.Name, f.Name, len(payload))
			}
			f.set(m, readValue(payload[off:], f.Kind))
			off += size
			continue
		}

		n := int(d.Fields[d.countIdx].get(m))
		if len(payload)-off < n*f.itemSize {
			return fmt.Errorf("%w: %s declares %d %s but payload holds %d bytes",
				ErrMalformed, d.Name, n, f.Name, len(payload)-off)
		}
		f.resize(m, n)
		for i := 0; i < n; i++ {
			e := f.elem(m, i)
			for _, sf := range f.Item {
				sf.set(e, readValue(payload[off:], sf.Kind))
				off += sf.Kind.Size()
			}
		}
	}
	return nil
}

func appendValue(buf []byte, kind Kind, v uint64) []byte {
	switch kind.Size() {
	case 1:
		return append(buf, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 4:
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

func readValue(p []byte, kind Kind) uint64 {
	switch kind.Size() {
	case 1:
		return uint64(p[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		return uint64(binary.LittleEndian.Uint32(p))
	default:
		return binary.LittleEndian.Uint64(p)
	}
}
