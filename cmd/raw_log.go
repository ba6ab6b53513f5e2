// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	rawLogCBOR     bool
	rawLogValidate bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw UBX frame log in human-readable format",
	Long: `Continuously decode and display UBX frames as they arrive.

Each frame is shown with timestamp, message name, a short interpretation and
every decoded field. Frames that fail to decode are shown with their raw bytes.
NMEA sentences on the same link are skipped (see nmea_log).

With --cbor, decoded messages are written to stdout as a CBOR sequence of
[class, id, {ordinal: value}] records instead, for piping into other tools.

Supports both serial and WebSocket connections. No baud detection is done;
use --baud or 'sextant probe' first.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogCBOR, "cbor", false, "Write decoded messages to stdout as CBOR records")
	rawLogCmd.Flags().BoolVar(&rawLogValidate, "validate", false, "Flag anomalous values in decoded messages")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if !rawLogCBOR {
		fmt.Printf("Sextant - Raw Frame Log\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	decoder := ubx.NewDecoder()
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
			m, err := decoder.DecodeByte(buf[i])
			if err != nil {
				if !rawLogCBOR {
					fmt.Printf("%s %v\n", styled(errStyle, "[ERROR]"), err)
					fmt.Print(styled(dimStyle, ubx.FormatFrame(decoder.Frame(), time.Now())))
				}
				continue
			}
			if m == nil {
				continue
			}

			if rawLogCBOR {
				if err := writeCBOR(m); err != nil {
					return err
				}
				continue
			}

			fmt.Print(ubx.FormatMessage(m, time.Now()))
			if rawLogValidate {
				printValidationErrors(m, ubx.ValidateMessage(m))
			}
		}
	}
}

func writeCBOR(m ubx.Message) error {
	data, err := ubx.EncodeCBOR(m)
	if err != nil {
		logger.Warn("CBOR encode failed", zap.Stringer("key", m.Key()), zap.Error(err))
		return nil
	}
	_, err = os.Stdout.Write(data)
	return err
}

// printValidationErrors prints the anomalies found in a decoded message
func printValidationErrors(m ubx.Message, verrs []ubx.ValidationError) {
	if len(verrs) == 0 {
		return
	}
	name := ubx.DefaultCatalog.Name(m.Key())
	fmt.Printf("  %s %s\n", styled(warnStyle, "VALIDATION:"), styled(nameStyle, name))
	for i, v := range verrs {
		switch v.Type {
		case ubx.AnomalyInvalidCount, ubx.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: %s\n", i+1, styled(errStyle, v.Message))
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, styled(warnStyle, v.Message))
		}
		for k, val := range v.Details {
			fmt.Printf("    %s=%v\n", k, val)
		}
	}
	fmt.Println()
}
