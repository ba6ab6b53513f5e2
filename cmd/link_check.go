// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw link stability",
	Long: `Open the link without speaking to the receiver and watch the byte stream.

Received bytes are counted along with UBX sync pairs (B5 62) and NMEA sentence
starts ('$'). A link at the wrong baud rate shows traffic with neither.
Useful for debugging cabling, bridges and baud rate mismatches.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration int

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

// linkCounts tallies framing markers seen on the raw stream
type linkCounts struct {
	bytes     int
	chunks    int
	ubxSyncs  int
	nmeaStart int
	last      byte
}

func (c *linkCounts) add(data []byte) {
	c.chunks++
	c.bytes += len(data)
	for _, b := range data {
		if c.last == ubx.Sync1 && b == ubx.Sync2 {
			c.ubxSyncs++
		}
		if b == '$' {
			c.nmeaStart++
		}
		c.last = b
	}
}

func (c *linkCounts) print(elapsed time.Duration) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %.0f seconds\n", elapsed.Seconds())
	fmt.Printf("Reads: %d\n", c.chunks)
	fmt.Printf("Bytes received: %d\n", c.bytes)
	fmt.Printf("UBX sync pairs: %d\n", c.ubxSyncs)
	fmt.Printf("NMEA sentence starts: %d\n", c.nmeaStart)
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Sextant - Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(linkCheckDuration) * time.Second)
	var counts linkCounts
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			counts.add(data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			counts.print(time.Since(start))
			if errors.Is(err, ErrConnectionClosed) {
				fmt.Printf("Result: %s (connection closed)\n", styled(errStyle, "FAILED"))
			} else {
				fmt.Printf("Result: %s (connection error)\n", styled(errStyle, "FAILED"))
			}
			os.Exit(1)

		case <-heartbeat.C:
			fmt.Printf("[%s] %d bytes, %d UBX, %d NMEA (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), counts.bytes, counts.ubxSyncs, counts.nmeaStart,
				time.Until(endTime).Seconds())
		}
	}

	counts.print(time.Since(start))
	switch {
	case counts.bytes == 0:
		fmt.Printf("Result: %s (no data)\n", styled(warnStyle, "SILENT"))
	case counts.ubxSyncs == 0 && counts.nmeaStart == 0:
		fmt.Printf("Result: %s (no framing seen, check baud rate)\n", styled(warnStyle, "NOISE"))
	default:
		fmt.Printf("Result: %s (connection stable)\n", styled(okStyle, "PASSED"))
	}
	return nil
}
