// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ubx implements the u-blox UBX binary protocol.
//
// Frames are laid out as SYNC1 SYNC2 CLASS ID LEN_LO LEN_HI <payload> CK_A CK_B,
// with all multi-byte integers little-endian. This package provides the
// checksum, a declarative message catalog, frame encoding/decoding and a
// byte-at-a-time frame synchronizer.
package ubx

// Frame sync bytes
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Frame size limits
const (
	HeaderSize     = 6 // sync1, sync2, class, id, len_lo, len_hi
	ChecksumSize   = 2
	FrameOverhead  = HeaderSize + ChecksumSize
	MaxPayloadSize = 4096
)

// Message classes
const (
	ClassNAV = 0x01
	ClassACK = 0x05
	ClassCFG = 0x06
	ClassMON = 0x0A
)

// Message ids - ACK class
const (
	IDAckNak = 0x00
	IDAckAck = 0x01
)

// Message ids - CFG class
const (
	IDCfgPrt  = 0x00
	IDCfgMsg  = 0x01
	IDCfgRate = 0x08
)

// Message ids - NAV class
const (
	IDNavPosECEF = 0x01
	IDNavPosLLH  = 0x02
	IDNavStatus  = 0x03
	IDNavDOP     = 0x04
	IDNavClock   = 0x22
	IDNavSVInfo  = 0x30
)

// Message ids - MON class
const (
	IDMonRxr = 0x21
)

// Decoder states
const (
	stateSync1 = iota
	stateSync2
	stateClass
	stateID
	stateLenLo
	stateLenHi
	statePayload
	stateCRC1
	stateCRC2
)
