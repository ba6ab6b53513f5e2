// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"errors"
	"reflect"
	"testing"
)

// ============================================================
// Decoder Helpers
// ============================================================

// feedChunks feeds data to a fresh decoder in chunks of the given size
func feedChunks(t *testing.T, data []byte, chunk int) ([]Message, []error) {
	t.Helper()
	d := NewDecoder()
	var msgs []Message
	var errs []error
	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		msgs = append(msgs, d.Decode(data[start:end], func(err error) { errs = append(errs, err) })...)
	}
	return msgs, errs
}

func mustEncode(t *testing.T, m Message) []byte {
	t.Helper()
	frame, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame
}

// ============================================================
// Resynchronization Tests
// ============================================================

func TestDecoder_GarbageBeforeFrame(t *testing.T) {
	clock := &NavClock{ITOW: 1234, ClkB: -42, ClkD: 7, TAcc: 10, FAcc: 20}
	garbage := []byte{0x00, 0xFF, 0xB5, 0x00, 0x62, 0x24, 'G', 'P', 0xB5}
	stream := append(append([]byte{}, garbage...), mustEncode(t, clock)...)

	for _, chunk := range []int{1, 2, 3, 7, 16, len(stream)} {
		msgs, errs := feedChunks(t, stream, chunk)
		if len(errs) != 0 {
			t.Errorf("chunk=%d: unexpected errors %v", chunk, errs)
		}
		if len(msgs) != 1 {
			t.Fatalf("chunk=%d: expected exactly 1 message, got %d", chunk, len(msgs))
		}
		if !reflect.DeepEqual(msgs[0], clock) {
			t.Errorf("chunk=%d: got %+v, want %+v", chunk, msgs[0], clock)
		}
	}
}

func TestDecoder_RepeatedSync1(t *testing.T) {
	ack := &AckAck{ClassID: ClassCFG, MessageID: IDCfgPrt}
	stream := append([]byte{0xB5}, mustEncode(t, ack)...)

	msgs, errs := feedChunks(t, stream, 1)
	if len(errs) != 0 || len(msgs) != 1 {
		t.Fatalf("Expected 1 message and no errors, got %d messages, errors %v", len(msgs), errs)
	}
}

func TestDecoder_StatePersistsAcrossCalls(t *testing.T) {
	frame := mustEncode(t, NewNavSVInfo(5, SVChannel{SVID: 3, CNo: 30}, SVChannel{SVID: 9, CNo: 41}))
	d := NewDecoder()

	for i, b := range frame[:len(frame)-1] {
		m, err := d.DecodeByte(b)
		if err != nil || m != nil {
			t.Fatalf("byte %d: expected incomplete frame, got %v, %v", i, m, err)
		}
	}
	m, err := d.DecodeByte(frame[len(frame)-1])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sv, ok := m.(*NavSVInfo); !ok || len(sv.Channels) != 2 {
		t.Errorf("Expected NAV-SVINFO with 2 channels, got %+v", m)
	}
	if string(d.Frame()) != string(frame) {
		t.Errorf("Frame() should return the completed frame bytes")
	}
}

func TestDecoder_MultipleFrames(t *testing.T) {
	want := []Message{
		&NavStatus{ITOW: 1, GPSFix: uint8(Fix3D)},
		&NavDOP{ITOW: 1, PDOP: 120},
		&MonRxr{Flags: 1},
		&NavPosLLH{ITOW: 1, Lat: 481173000, Lon: 115166667},
	}

	var stream []byte
	for _, m := range want {
		stream = append(stream, mustEncode(t, m)...)
		stream = append(stream, "$GPTXT,01*00\r\n"...)
	}

	msgs, errs := feedChunks(t, stream, 5)
	if len(errs) != 0 {
		t.Errorf("Unexpected errors: %v", errs)
	}
	if !reflect.DeepEqual(msgs, want) {
		t.Errorf("Got %+v, want %+v", msgs, want)
	}
}

func TestDecoder_ChecksumErrorThenRecovery(t *testing.T) {
	bad := mustEncode(t, &AckAck{ClassID: 6, MessageID: 1})
	bad[len(bad)-1] ^= 0x55
	good := mustEncode(t, &AckNak{ClassID: 6, MessageID: 1})

	msgs, errs := feedChunks(t, append(bad, good...), 4)
	if len(errs) != 1 || !errors.Is(errs[0], ErrChecksumMismatch) {
		t.Errorf("Expected one checksum error, got %v", errs)
	}
	if len(msgs) != 1 {
		t.Fatalf("Expected decoder to recover with 1 message, got %d", len(msgs))
	}
	if _, ok := msgs[0].(*AckNak); !ok {
		t.Errorf("Expected *AckNak, got %T", msgs[0])
	}
}

func TestDecoder_UnknownMessage(t *testing.T) {
	frame := EncodeFrame(Key{Class: 0x02, ID: 0x15}, []byte{1, 2, 3, 4})
	d := NewDecoder()

	var err error
	for _, b := range frame {
		_, err = d.DecodeByte(b)
	}
	var unknown *UnknownMessageError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected *UnknownMessageError, got %v", err)
	}
	if unknown.Key != (Key{Class: 0x02, ID: 0x15}) {
		t.Errorf("Unexpected key %s", unknown.Key)
	}
	if len(d.Frame()) != len(frame) {
		t.Errorf("Frame() should expose the unknown frame for logging")
	}
}

func TestDecoder_OversizedLengthResyncs(t *testing.T) {
	bogus := []byte{0xB5, 0x62, 0x01, 0x22, 0xFF, 0xFF}
	good := mustEncode(t, &NavClock{ITOW: 9})

	msgs, errs := feedChunks(t, append(bogus, good...), 1)
	if len(errs) != 0 || len(msgs) != 1 {
		t.Errorf("Expected recovery after oversized length, got %d messages, errors %v", len(msgs), errs)
	}
}

func TestDecoder_Discarded(t *testing.T) {
	d := NewDecoder()
	d.Decode([]byte{0x01, 0x02, 0xB5, 0x00}, nil)
	if d.Discarded() != 4 {
		t.Errorf("Expected 4 discarded bytes, got %d", d.Discarded())
	}
}

// ============================================================
// Fuzz Tests
// ============================================================

func TestDecoder_FuzzGarbageAndChunking(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		msg := &NavPosECEF{
			ITOW: rng.Uint32(),
			X:    int32(rng.Uint32()),
			Y:    int32(rng.Uint32()),
			Z:    int32(rng.Uint32()),
			PAcc: rng.Uint32(),
		}

		// Garbage never contains Sync1 so it cannot start a frame
		garbage := make([]byte, rng.Intn(64))
		for i := range garbage {
			b := byte(rng.Intn(256))
			if b == Sync1 {
				b = 0
			}
			garbage[i] = b
		}

		stream := append(garbage, mustEncode(t, msg)...)
		msgs, errs := feedChunks(t, stream, 1+rng.Intn(len(stream)))
		if len(errs) != 0 || len(msgs) != 1 {
			t.Fatalf("Round %d: expected 1 message, got %d (errors %v)", round, len(msgs), errs)
		}
		if !reflect.DeepEqual(msgs[0], msg) {
			t.Fatalf("Round %d: got %+v, want %+v", round, msgs[0], msg)
		}
	}
}

func TestDecoder_FuzzRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	buf := make([]byte, 256)
	for round := 0; round < rounds; round++ {
		rng.Read(buf)
		// Must never panic on arbitrary input
		d.Decode(buf, nil)
	}
}
