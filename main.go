// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Sextant - u-blox GPS Receiver Client
//
// A CLI tool for detecting, configuring and monitoring u-blox receivers
// over UBX and NMEA.

package main

import (
	"os"

	"github.com/Thermoquad/sextant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
