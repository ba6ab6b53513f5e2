// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/sextant/pkg/nmea"
	"github.com/Thermoquad/sextant/pkg/session"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	showAll       bool
	showNMEA      bool
	statsInterval int
	enableMsgs    []string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the receiver and detect anomalies",
	Long: `Run a session against the receiver and track link health.

This command validates each message and reports:
  - Checksum errors and malformed frames
  - Messages missing from the catalog
  - Anomalous values (out of range coordinates, poor geometry, bad counts)
  - Statistics (frame rate, error rate, NMEA sentences)

By default only anomalies are displayed. Use --show-all to display every
message and --nmea to display interleaved NMEA sentences.

Messages named with --enable are switched on with CFG-MSG (rate 1) once the
session is listening.

Examples:
  sextant monitor --enable NAV-POSLLH,NAV-STATUS
  sextant monitor --show-all --nmea --stats-interval 30`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just anomalies)")
	monitorCmd.Flags().BoolVar(&showNMEA, "nmea", false, "Show NMEA sentences")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().StringSliceVar(&enableMsgs, "enable", nil, "Messages to enable with CFG-MSG")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}

	enable := make([]*ubx.Definition, 0, len(enableMsgs))
	for _, name := range enableMsgs {
		def, err := lookupMessage(name)
		if err != nil {
			return err
		}
		enable = append(enable, def)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, "Monitor", sessionConfig())
	if err != nil {
		return err
	}
	defer s.Stop()

	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	s.OnMessage(func(m ubx.Message) {
		verrs := ubx.ValidateMessage(m)
		if len(verrs) > 0 {
			printValidationErrors(m, verrs)
			return
		}
		if showAll {
			fmt.Print(ubx.FormatMessage(m, time.Now()))
		}
	})
	s.OnSentence(func(sen nmea.Sentence) {
		if showNMEA {
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), nmea.FormatSentence(sen))
		}
	})

	for _, def := range enable {
		if err := enableMessage(ctx, s, def); err != nil {
			return err
		}
	}

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			fmt.Println()
			fmt.Print(st.String())
			return nil
		case <-statsTicker.C:
			st := s.Stats()
			fmt.Println()
			fmt.Print(st.String())
			fmt.Println()
			if err := s.Err(); err != nil {
				fmt.Printf("%s %v\n", styled(errStyle, "[LINK LOST]"), err)
				return err
			}
		}
	}
}

// enableMessage sets the output rate of def to one per navigation solution
func enableMessage(ctx context.Context, s *session.Session, def *ubx.Definition) error {
	actx, cancel := context.WithTimeout(ctx, ms(cfg.Session.AckTimeoutMS))
	defer cancel()

	acked, err := s.WriteConfig(actx, ubx.NewCfgMsg(def.Key, 1))
	switch {
	case err != nil:
		return fmt.Errorf("enable %s: %w", def.Name, err)
	case !acked:
		fmt.Printf("%s %s\n", styled(warnStyle, "[NAK]"), def.Name)
	default:
		logger.Info("message enabled", zap.String("name", def.Name))
		fmt.Printf("%s %s\n", styled(okStyle, "[ENABLED]"), def.Name)
	}
	return nil
}
