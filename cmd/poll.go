// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/session"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

var (
	pollTimeout  int
	pollCount    int
	pollInterval int
)

var pollCmd = &cobra.Command{
	Use:   "poll <MESSAGE>",
	Short: "Poll a UBX message by name",
	Long: `Send the zero-payload poll request for a message and print the reply.

MESSAGE is a catalog name such as NAV-STATUS, NAV-POSLLH or CFG-RATE.
Run without arguments to list the pollable messages.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().IntVar(&pollTimeout, "timeout", 5, "Timeout in seconds per poll")
	pollCmd.Flags().IntVar(&pollCount, "count", 1, "Number of polls to send")
	pollCmd.Flags().IntVar(&pollInterval, "interval", 1000, "Delay between polls in milliseconds")
}

func runPoll(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Pollable messages:\n")
		for _, def := range ubx.DefaultCatalog.Definitions() {
			if def.Flags.Has(ubx.Pollable) {
				fmt.Printf("  %-12s %s\n", def.Name, def.Key)
			}
		}
		return nil
	}

	def, err := lookupMessage(args[0])
	if err != nil {
		return err
	}
	if !def.Flags.Has(ubx.Pollable) {
		return fmt.Errorf("%w: %s", ubx.ErrNotPollable, def.Name)
	}

	ctx := cmd.Context()
	s, err := startSession(ctx, "Poll "+def.Name, sessionConfig())
	if err != nil {
		return err
	}
	defer s.Stop()

	failed := 0
	for i := 0; i < pollCount; i++ {
		if i > 0 {
			time.Sleep(time.Duration(pollInterval) * time.Millisecond)
		}
		pctx, cancel := context.WithTimeout(ctx, time.Duration(pollTimeout)*time.Second)
		m, err := s.PollKey(pctx, def.Key)
		cancel()
		if err != nil {
			fmt.Printf("%s %s: %v\n", styled(errStyle, "[NO REPLY]"), def.Name, err)
			failed++
			continue
		}
		fmt.Print(ubx.FormatMessage(m, time.Now()))
		printValidationErrors(m, ubx.ValidateMessage(m))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d polls failed: %w", failed, pollCount, session.ErrNoResult)
	}
	return nil
}

// lookupMessage finds a catalog entry by name, case-insensitively
func lookupMessage(name string) (*ubx.Definition, error) {
	def, ok := ubx.DefaultCatalog.LookupName(strings.ToUpper(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ubx.ErrUnknownMessage, name)
	}
	return def, nil
}
