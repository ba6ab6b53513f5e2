// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/nmea"
)

var nmeaLogShowRaw bool

var nmeaLogCmd = &cobra.Command{
	Use:   "nmea_log",
	Short: "Display decoded NMEA sentences",
	Long: `Continuously decode and display NMEA sentences as they arrive.

Binary UBX frames interleaved on the link are skipped. Sentences with a bad
checksum or unparsable fields are reported; unknown sentence types are shown
raw.`,
	RunE: runNMEALog,
}

func init() {
	rootCmd.AddCommand(nmeaLogCmd)
	nmeaLogCmd.Flags().BoolVar(&nmeaLogShowRaw, "raw", false, "Also print each raw sentence")
}

func runNMEALog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Sextant - NMEA Sentence Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var scanner nmea.Scanner
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		for i := 0; i < n; i++ {
			line, ok := scanner.Feed(buf[i])
			if !ok {
				continue
			}
			printSentence(line)
		}
	}
}

func printSentence(line string) {
	timestamp := time.Now().Format("15:04:05.000")
	if nmeaLogShowRaw {
		fmt.Printf("[%s] %s\n", timestamp, styled(dimStyle, line))
	}

	s, err := nmea.Decode(line)
	switch {
	case errors.Is(err, nmea.ErrUnknownMessage):
		if !nmeaLogShowRaw {
			fmt.Printf("[%s] %s\n", timestamp, styled(dimStyle, line))
		}
	case err != nil:
		fmt.Printf("[%s] %s %v\n", timestamp, styled(errStyle, "[ERROR]"), err)
	default:
		fmt.Printf("[%s] %s\n", timestamp, nmea.FormatSentence(s))
	}
}
