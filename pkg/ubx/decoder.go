// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import "fmt"

// Decoder implements the UBX frame synchronizer state machine.
// State persists across calls, so input may be fed in chunks of any size.
type Decoder struct {
	catalog   *Catalog
	state     int
	length    int
	remaining int
	buffer    []byte
	frame     []byte
	discarded uint64
}

// NewDecoder creates a frame decoder using DefaultCatalog
func NewDecoder() *Decoder {
	return NewDecoderWithCatalog(DefaultCatalog)
}

// NewDecoderWithCatalog creates a frame decoder resolving messages through c
func NewDecoderWithCatalog(c *Catalog) *Decoder {
	return &Decoder{
		catalog: c,
		state:   stateSync1,
		buffer:  make([]byte, 0, 256),
	}
}

// Reset returns the decoder to hunting for the first sync byte
func (d *Decoder) Reset() {
	d.state = stateSync1
	d.length = 0
	d.remaining = 0
	d.buffer = d.buffer[:0]
}

// Frame returns the raw bytes of the last completed frame, valid until the
// next completed frame
func (d *Decoder) Frame() []byte {
	return d.frame
}

// Discarded returns the number of bytes dropped while resynchronizing
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// Decode feeds a chunk of bytes and returns every message completed within it.
// Per-frame errors are passed to onErr when it is not nil.
func (d *Decoder) Decode(p []byte, onErr func(error)) []Message {
	var out []Message
	for _, b := range p {
		m, err := d.DecodeByte(b)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a message once a complete frame has been accumulated and decoded,
// or nil while the frame is incomplete. Errors come from decoding a complete
// frame; the decoder is always reset afterwards.
func (d *Decoder) DecodeByte(b byte) (Message, error) {
	switch d.state {
	case stateSync1:
		if b != Sync1 {
			d.discarded++
			return nil, nil
		}
		d.buffer = append(d.buffer[:0], b)
		d.state = stateSync2
		return nil, nil

	case stateSync2:
		if b != Sync2 {
			d.discarded += uint64(len(d.buffer))
			d.Reset()
			// The mismatching byte may itself start a frame
			return d.DecodeByte(b)
		}
		d.buffer = append(d.buffer, b)
		d.state = stateClass
		return nil, nil

	case stateClass:
		d.buffer = append(d.buffer, b)
		d.state = stateID
		return nil, nil

	case stateID:
		d.buffer = append(d.buffer, b)
		d.state = stateLenLo
		return nil, nil

	case stateLenLo:
		d.buffer = append(d.buffer, b)
		d.length = int(b)
		d.state = stateLenHi
		return nil, nil

	case stateLenHi:
		d.buffer = append(d.buffer, b)
		d.length |= int(b) << 8
		if d.length > MaxPayloadSize {
			d.discarded += uint64(len(d.buffer))
			d.Reset()
			return nil, nil
		}
		d.remaining = d.length
		if d.remaining == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		d.remaining--
		if d.remaining == 0 {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.buffer = append(d.buffer, b)
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.buffer = append(d.buffer, b)
		d.frame = append(d.frame[:0], d.buffer...)
		d.Reset()
		return d.catalog.Decode(d.frame)

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("ubx: invalid decoder state %d", state)
	}
}
