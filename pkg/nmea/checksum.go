// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

// Checksum XOR-folds the bytes of the span between '$' and '*'
func Checksum(span string) byte {
	var cs byte
	for i := 0; i < len(span); i++ {
		cs ^= span[i]
	}
	return cs
}
