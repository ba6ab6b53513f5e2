// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/sextant/pkg/session"
	"github.com/Thermoquad/sextant/pkg/ubx"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// sessionConfig builds session settings from the loaded configuration.
// A baud rate from --baud, link.baud or SEXTANT_LINK_BAUD pins detection to
// that single rate.
func sessionConfig() session.Config {
	sc := cfg.Session
	c := session.Config{
		BaudRates:    sc.BaudRates,
		ProbeSettle:  ms(sc.ProbeSettleMS),
		ProbeTimeout: ms(sc.ProbeTimeoutMS),
		AckTimeout:   ms(sc.AckTimeoutMS),
		WaitPortAck:  sc.WaitPortAck,
		Logger:       logger,
	}
	if cfg.Link.Pinned() {
		c.BaudRates = []int{cfg.Link.Baud}
		c.ProbeSettle = 0
	}
	if sc.TargetBaud > 0 {
		c.Port = ubx.NewUARTConfig(uint8(sc.PortID), uint32(sc.TargetBaud))
	}
	return c
}

// startSession starts a session on the configured link and prints the header
func startSession(ctx context.Context, title string, c session.Config) (*session.Session, error) {
	fmt.Printf("Sextant - %s\n", title)
	fmt.Printf("Connection: %s\n", connectionInfo())
	fmt.Printf("Detecting baud rate (%v)...\n", c.BaudRates)

	s := session.New(sessionOpener(), c)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	fmt.Printf("Receiver: %s @ %d baud\n\n", styled(okStyle, "OK"), s.BaudRate())
	return s, nil
}
