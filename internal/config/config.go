// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads sextant settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration
type Config struct {
	Link    LinkConfig    `mapstructure:"link" yaml:"link"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// LinkConfig selects the transport to the receiver
type LinkConfig struct {
	// Port is a serial device such as /dev/ttyACM0
	Port string `mapstructure:"port" yaml:"port"`
	// Baud, when non-zero, pins the link to one rate: session commands
	// skip detection and raw commands open at it. 0 means detect.
	Baud int `mapstructure:"baud" yaml:"baud"`
	// URL of a WebSocket serial bridge, used instead of Port when set
	URL         string `mapstructure:"url" yaml:"url"`
	Username    string `mapstructure:"username" yaml:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify" yaml:"no_ssl_verify"`
	// ReadTimeoutMS bounds a single transport read
	ReadTimeoutMS int `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
}

// SessionConfig controls baud detection and port configuration
type SessionConfig struct {
	BaudRates      []int `mapstructure:"baud_rates" yaml:"baud_rates"`
	ProbeSettleMS  int   `mapstructure:"probe_settle_ms" yaml:"probe_settle_ms"`
	ProbeTimeoutMS int   `mapstructure:"probe_timeout_ms" yaml:"probe_timeout_ms"`
	AckTimeoutMS   int   `mapstructure:"ack_timeout_ms" yaml:"ack_timeout_ms"`

	// TargetBaud, when non-zero, is written to PortID with CFG-PRT after
	// detection and the session follows the receiver to it
	TargetBaud  int  `mapstructure:"target_baud" yaml:"target_baud"`
	PortID      int  `mapstructure:"port_id" yaml:"port_id"`
	WaitPortAck bool `mapstructure:"wait_port_ack" yaml:"wait_port_ack"`
}

// LogConfig defines logger settings
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs" yaml:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	Development bool           `mapstructure:"development" yaml:"development"`
}

// RotationConfig controls log file rotation for file outputs
type RotationConfig struct {
	Enable     bool `mapstructure:"enable" yaml:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// DefaultBaud is the rate raw commands open at when link.baud is unset
const DefaultBaud = 9600

// Pinned reports whether the configuration fixes the baud rate
func (l LinkConfig) Pinned() bool {
	return l.Baud > 0
}

// SerialBaud returns the rate for commands that do not detect one
func (l LinkConfig) SerialBaud() int {
	if l.Baud > 0 {
		return l.Baud
	}
	return DefaultBaud
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			ReadTimeoutMS: 100,
		},
		Session: SessionConfig{
			BaudRates:      []int{115200, 57600, 38400, 19200, 9600},
			ProbeSettleMS:  2000,
			ProbeTimeoutMS: 10000,
			AckTimeoutMS:   5000,
			PortID:         1,
			WaitPortAck:    false,
		},
		Log: LogConfig{
			Level:   "warn",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path when non-empty, otherwise from
// sextant.yaml in the working directory or ~/.config/sextant. A missing file
// leaves the defaults. Environment variables use the prefix SEXTANT with
// `.` replaced by `_`, e.g. SEXTANT_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEXTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("link.port", cfg.Link.Port)
	v.SetDefault("link.baud", cfg.Link.Baud)
	v.SetDefault("link.url", cfg.Link.URL)
	v.SetDefault("link.username", cfg.Link.Username)
	v.SetDefault("link.no_ssl_verify", cfg.Link.NoSSLVerify)
	v.SetDefault("link.read_timeout_ms", cfg.Link.ReadTimeoutMS)
	v.SetDefault("session.baud_rates", cfg.Session.BaudRates)
	v.SetDefault("session.probe_settle_ms", cfg.Session.ProbeSettleMS)
	v.SetDefault("session.probe_timeout_ms", cfg.Session.ProbeTimeoutMS)
	v.SetDefault("session.ack_timeout_ms", cfg.Session.AckTimeoutMS)
	v.SetDefault("session.target_baud", cfg.Session.TargetBaud)
	v.SetDefault("session.port_id", cfg.Session.PortID)
	v.SetDefault("session.wait_port_ack", cfg.Session.WaitPortAck)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("SEXTANT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sextant")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sextant"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Link.Baud < 0 {
		return fmt.Errorf("invalid link.baud: %d", c.Link.Baud)
	}
	if c.Link.ReadTimeoutMS <= 0 {
		return fmt.Errorf("invalid link.read_timeout_ms: %d", c.Link.ReadTimeoutMS)
	}

	if len(c.Session.BaudRates) == 0 {
		return errors.New("session.baud_rates must not be empty")
	}
	for _, b := range c.Session.BaudRates {
		if b <= 0 {
			return fmt.Errorf("invalid session.baud_rates entry: %d", b)
		}
	}
	if c.Session.ProbeSettleMS < 0 || c.Session.ProbeTimeoutMS <= 0 || c.Session.AckTimeoutMS <= 0 {
		return errors.New("session timeouts must be positive")
	}
	if c.Session.TargetBaud < 0 {
		return fmt.Errorf("invalid session.target_baud: %d", c.Session.TargetBaud)
	}
	if c.Session.PortID < 0 || c.Session.PortID > 255 {
		return fmt.Errorf("invalid session.port_id: %d", c.Session.PortID)
	}
	return nil
}
