// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/session"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	cfgTargetBaud int
	cfgPortID     int
	cfgPortAck    bool
	cfgMsgRate    int
	cfgMeasMS     int
	cfgNavRate    int
	cfgTimeRef    string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write configuration messages to the receiver",
	Long: `Write CFG messages to the receiver and report ACK or NAK.

Exit codes:
  0 - Acknowledged
  1 - Rejected (NAK) or no reply
  2 - Connection error`,
}

var configurePortCmd = &cobra.Command{
	Use:   "port",
	Short: "Set the UART baud rate with CFG-PRT",
	Long: `Detect the current baud rate, then move the receiver to --target-baud.

Without --ack the write is fire-and-forget, since many receivers switch rate
before the acknowledgement leaves the UART.

Examples:
  sextant configure port --target-baud 115200
  sextant configure port --target-baud 57600 --port-id 1 --ack`,
	Args: cobra.NoArgs,
	RunE: runConfigurePort,
}

var configureMsgCmd = &cobra.Command{
	Use:   "msg <MESSAGE>",
	Short: "Set a message's output rate with CFG-MSG",
	Long: `Set how often MESSAGE is emitted, per navigation solution.
A rate of 0 disables the message.

Examples:
  sextant configure msg NAV-POSLLH --rate 1
  sextant configure msg NAV-SVINFO --rate 0`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureMsg,
}

var configureRateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Set the measurement rate with CFG-RATE",
	Long: `Set the measurement period and navigation rate.

Examples:
  sextant configure rate --meas-ms 200
  sextant configure rate --meas-ms 1000 --nav 1 --time-ref utc`,
	Args: cobra.NoArgs,
	RunE: runConfigureRate,
}

func init() {
	rootCmd.AddCommand(configureCmd)
	configureCmd.AddCommand(configurePortCmd, configureMsgCmd, configureRateCmd)

	configurePortCmd.Flags().IntVar(&cfgTargetBaud, "target-baud", 115200, "Baud rate to switch the receiver to")
	configurePortCmd.Flags().IntVar(&cfgPortID, "port-id", 1, "Receiver port identifier (1 = UART1)")
	configurePortCmd.Flags().BoolVar(&cfgPortAck, "ack", false, "Require an acknowledgement")

	configureMsgCmd.Flags().IntVar(&cfgMsgRate, "rate", 1, "Output rate per navigation solution (0 disables)")

	configureRateCmd.Flags().IntVar(&cfgMeasMS, "meas-ms", 1000, "Measurement period in milliseconds")
	configureRateCmd.Flags().IntVar(&cfgNavRate, "nav", 1, "Measurement cycles per navigation solution")
	configureRateCmd.Flags().StringVar(&cfgTimeRef, "time-ref", "gps", "Time reference (utc or gps)")
}

func runConfigurePort(cmd *cobra.Command, args []string) error {
	if cfgTargetBaud <= 0 {
		return fmt.Errorf("--target-baud must be positive")
	}
	if cfgPortID < 0 || cfgPortID > 255 {
		return fmt.Errorf("--port-id must be between 0 and 255")
	}

	c := sessionConfig()
	c.Port = ubx.NewUARTConfig(uint8(cfgPortID), uint32(cfgTargetBaud))
	c.WaitPortAck = cfgPortAck

	s, err := startSession(cmd.Context(), "Configure Port", c)
	switch {
	case errors.Is(err, session.ErrPortRejected):
		fmt.Printf("%s CFG-PRT\n", styled(errStyle, "[NAK]"))
		os.Exit(1)
	case err != nil:
		exitConfigureError(err)
	}
	defer s.Stop()

	label := "[SENT]"
	if cfgPortAck {
		label = "[ACK]"
	}
	fmt.Printf("%s receiver now at %d baud\n", styled(okStyle, label), s.BaudRate())
	return nil
}

func runConfigureMsg(cmd *cobra.Command, args []string) error {
	def, err := lookupMessage(args[0])
	if err != nil {
		return err
	}
	if cfgMsgRate < 0 || cfgMsgRate > 255 {
		return fmt.Errorf("--rate must be between 0 and 255")
	}
	return writeConfig(cmd.Context(), "Configure "+def.Name, ubx.NewCfgMsg(def.Key, uint8(cfgMsgRate)))
}

func runConfigureRate(cmd *cobra.Command, args []string) error {
	if cfgMeasMS <= 0 || cfgMeasMS > 0xFFFF {
		return fmt.Errorf("--meas-ms must be between 1 and 65535")
	}
	if cfgNavRate <= 0 || cfgNavRate > 0xFFFF {
		return fmt.Errorf("--nav must be between 1 and 65535")
	}

	m := &ubx.CfgRate{MeasRate: uint16(cfgMeasMS), NavRate: uint16(cfgNavRate)}
	switch cfgTimeRef {
	case "utc":
		m.TimeRef = ubx.TimeRefUTC
	case "gps":
		m.TimeRef = ubx.TimeRefGPS
	default:
		return fmt.Errorf("--time-ref must be utc or gps, got %q", cfgTimeRef)
	}
	return writeConfig(cmd.Context(), "Configure Rate", m)
}

// writeConfig sends m on a fresh session and exits 1 on NAK or timeout
func writeConfig(ctx context.Context, title string, m ubx.Message) error {
	s, err := startSession(ctx, title, sessionConfig())
	if err != nil {
		exitConfigureError(err)
	}
	defer s.Stop()

	name := ubx.DefaultCatalog.Name(m.Key())
	actx, cancel := context.WithTimeout(ctx, ms(cfg.Session.AckTimeoutMS))
	defer cancel()

	fmt.Print(ubx.FormatMessage(m, time.Now()))
	acked, err := s.WriteConfig(actx, m)
	switch {
	case err != nil:
		fmt.Printf("%s %s: %v\n", styled(errStyle, "[NO REPLY]"), name, err)
		s.Stop()
		os.Exit(1)
	case !acked:
		fmt.Printf("%s %s\n", styled(errStyle, "[NAK]"), name)
		s.Stop()
		os.Exit(1)
	}
	fmt.Printf("%s %s\n", styled(okStyle, "[ACK]"), name)
	return nil
}

func exitConfigureError(err error) {
	fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
	os.Exit(2)
}
