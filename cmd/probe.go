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
	"go.bug.st/serial"

	"github.com/Thermoquad/sextant/pkg/session"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	probeList    bool
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Detect the receiver's baud rate",
	Long: `Detect the baud rate of a u-blox receiver.

Each candidate rate (session.baud_rates, fastest first) is opened, left to
settle, and probed with a NAV-CLOCK poll. The first rate that answers is
reported along with the receiver's navigation status.

With --list, the available serial ports are listed instead.

Examples:
  sextant probe --list
  sextant probe --port /dev/ttyACM0

Exit codes:
  0 - Receiver found
  1 - No candidate rate answered
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolVar(&probeList, "list", false, "List serial ports and exit")
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 120, "Overall timeout in seconds")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeList {
		return listPorts()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	s, err := startSession(ctx, "Baud Rate Probe", sessionConfig())
	switch {
	case errors.Is(err, session.ErrNoResponsiveBaudRate), errors.Is(err, context.DeadlineExceeded):
		fmt.Printf("%s: %v\n", styled(errStyle, "FAILED"), err)
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Stop()

	pollCtx, pollCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pollCancel()
	if status, err := session.Poll[*ubx.NavStatus](pollCtx, s); err == nil {
		fmt.Printf("Fix: %s (ok=%t)\n", status.Fix(), status.FixOK())
		fmt.Printf("Time to first fix: %d ms\n", status.TTFF)
	} else {
		fmt.Printf("NAV-STATUS: %s\n", styled(warnStyle, err.Error()))
	}

	return nil
}

func listPorts() error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		return nil
	}
	fmt.Printf("Serial ports:\n")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
