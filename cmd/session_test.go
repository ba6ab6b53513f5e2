// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"slices"
	"testing"
	"time"

	"github.com/Thermoquad/sextant/internal/config"
)

// ============================================================
// Session Settings Tests
// ============================================================

// withConfig installs c as the loaded configuration for one test
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	saved := cfg
	cfg = c
	t.Cleanup(func() { cfg = saved })
}

func TestSessionConfig_Detect(t *testing.T) {
	withConfig(t, config.Default())

	c := sessionConfig()
	if !slices.Equal(c.BaudRates, config.Default().Session.BaudRates) {
		t.Errorf("Expected every candidate rate, got %v", c.BaudRates)
	}
	if c.ProbeSettle != 2*time.Second {
		t.Errorf("Expected 2s settle, got %v", c.ProbeSettle)
	}
	if c.Port != nil {
		t.Error("No port configuration expected without target_baud")
	}
}

func TestSessionConfig_PinnedFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEXTANT_CONFIG", "")
	t.Setenv("SEXTANT_LINK_BAUD", "19200")
	if wd, err := os.Getwd(); err == nil {
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	loaded, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	withConfig(t, loaded)

	c := sessionConfig()
	if !slices.Equal(c.BaudRates, []int{19200}) {
		t.Errorf("Expected detection pinned to 19200, got %v", c.BaudRates)
	}
	if c.ProbeSettle != 0 {
		t.Errorf("Pinned rate should skip the settle delay, got %v", c.ProbeSettle)
	}
}

func TestSessionConfig_TargetBaud(t *testing.T) {
	c := config.Default()
	c.Link.Baud = 9600
	c.Session.TargetBaud = 115200
	c.Session.PortID = 1
	withConfig(t, c)

	sc := sessionConfig()
	if !slices.Equal(sc.BaudRates, []int{9600}) {
		t.Errorf("Expected pinned 9600, got %v", sc.BaudRates)
	}
	if sc.Port == nil || sc.Port.BaudRate != 115200 || sc.Port.PortID != 1 {
		t.Errorf("Unexpected port configuration %+v", sc.Port)
	}
}
