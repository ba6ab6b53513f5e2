// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

// Checksum computes the UBX 8-bit Fletcher checksum over data.
// data must span class id through the end of the payload.
func Checksum(data []byte) (a, b uint8) {
	for _, c := range data {
		a += c
		b += a
	}
	return a, b
}

// VerifyChecksum reports whether a complete frame carries a valid checksum trailer.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < FrameOverhead {
		return false
	}
	a, b := Checksum(frame[2 : len(frame)-ChecksumSize])
	return frame[len(frame)-2] == a && frame[len(frame)-1] == b
}
