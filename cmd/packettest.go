// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	packetTestTimeout int
	packetTestPoll    bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid UBX frame",
	Long: `Wait for a valid UBX frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
UBX frame. It ignores invalid bytes and NMEA text and waits for a complete
frame passing the checksum. With --poll, a NAV-CLOCK poll is sent first so a
receiver with periodic UBX output disabled still answers.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestPoll, "poll", true, "Poll NAV-CLOCK before waiting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Sextant - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestPoll {
		frame, _ := ubx.PollFrame[*ubx.NavClock]()
		if _, err := conn.Write(frame); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent NAV-CLOCK poll\n")
	}
	fmt.Printf("Waiting for valid UBX frame...\n\n")

	decoder := ubx.NewDecoder()
	buf := make([]byte, 256)

	msgChan := make(chan ubx.Message, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				m, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if m != nil {
					if d := decoder.Discarded(); d > 0 {
						fmt.Printf("(skipped %d bytes before sync)\n", d)
					}
					msgChan <- m
					return
				}
			}
		}
	}()

	select {
	case m := <-msgChan:
		frame := decoder.Frame()
		fmt.Printf("%s: Received valid frame\n", styled(okStyle, "SUCCESS"))
		fmt.Printf("  Message: %s (%s)\n", ubx.DefaultCatalog.Name(m.Key()), m.Key())
		fmt.Printf("  Length: %d bytes\n", len(frame)-ubx.FrameOverhead)
		fmt.Printf("  Checksum: 0x%02X%02X\n", frame[len(frame)-2], frame[len(frame)-1])
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
