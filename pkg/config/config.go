// Machine configuration for the CNC controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"cnc-go-migration/pkg/errors"
)

// Config is the root machine configuration, loaded from a YAML file.
type Config struct {
	Feedhold FeedholdConfig `yaml:"feedhold"`
	Spindle  SpindleConfig  `yaml:"spindle"`
	Coolant  CoolantConfig  `yaml:"coolant"`
	Motion   MotionConfig   `yaml:"motion"`
	Serial   SerialConfig   `yaml:"serial"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

// FeedholdConfig controls hold entry/exit behavior.
type FeedholdConfig struct {
	// ZLift is the incremental Z move (machine units) applied when a hold
	// with entry actions reaches the hold point. Zero disables the lift.
	ZLift float64 `yaml:"z_lift"`

	// DefaultType selects the entry variant for `!` requests:
	// "actions", "no-actions" or "sync".
	DefaultType string `yaml:"default_type"`

	// DefaultFinal selects the termination variant for `!` requests:
	// "cycle", "stop", "end", "alarm", "shutdown" or "interlock".
	DefaultFinal string `yaml:"default_final"`

	// SpindlePause pauses the spindle during a hold with entry actions.
	SpindlePause bool `yaml:"spindle_pause"`

	// CoolantPause pauses coolant during a hold with entry actions.
	CoolantPause bool `yaml:"coolant_pause"`
}

// SpindleConfig controls spindle behavior.
type SpindleConfig struct {
	// SpinupDelay is the dwell (seconds) applied when the spindle resumes
	// from a hold pause.
	SpinupDelay float64 `yaml:"spinup_delay"`
}

// CoolantConfig controls coolant behavior.
type CoolantConfig struct {
	// Mist and Flood enable the respective channels.
	Mist  bool `yaml:"mist"`
	Flood bool `yaml:"flood"`
}

// MotionConfig controls the planner/runtime pair.
type MotionConfig struct {
	// TickPeriod is the runtime segment period in seconds.
	TickPeriod float64 `yaml:"tick_period"`

	// TraverseRate is the rate (units/s) used for hold lift and return moves.
	TraverseRate float64 `yaml:"traverse_rate"`
}

// SerialConfig selects the inbound command device.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// MonitorConfig controls the HTTP status server.
type MonitorConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

// LogConfig controls file logging.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigLoadError(path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.ConfigLoadError(path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Feedhold.DefaultType == "" {
		c.Feedhold.DefaultType = "actions"
	}
	if c.Feedhold.DefaultFinal == "" {
		c.Feedhold.DefaultFinal = "cycle"
	}
	if c.Spindle.SpinupDelay == 0 {
		c.Spindle.SpinupDelay = 1.0
	}
	if c.Motion.TickPeriod == 0 {
		c.Motion.TickPeriod = 0.01
	}
	if c.Motion.TraverseRate == 0 {
		c.Motion.TraverseRate = 50.0
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Monitor.Addr == "" {
		c.Monitor.Addr = "127.0.0.1:7125"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Feedhold.ZLift < 0 {
		return errors.ConfigValidationError("feedhold.z_lift", "must be >= 0")
	}
	switch c.Feedhold.DefaultType {
	case "actions", "no-actions", "sync":
	default:
		return errors.ConfigValidationError("feedhold.default_type",
			"must be one of actions, no-actions, sync")
	}
	switch c.Feedhold.DefaultFinal {
	case "cycle", "stop", "end", "alarm", "shutdown", "interlock":
	default:
		return errors.ConfigValidationError("feedhold.default_final",
			"must be one of cycle, stop, end, alarm, shutdown, interlock")
	}
	if c.Feedhold.DefaultType != "actions" && c.Feedhold.DefaultFinal == "cycle" {
		return errors.ConfigValidationError("feedhold.default_final",
			"'cycle' with a hold that has no entry actions resumes immediately; use default_type 'actions' or a different final")
	}
	if c.Spindle.SpinupDelay < 0 {
		return errors.ConfigValidationError("spindle.spinup_delay", "must be >= 0")
	}
	if c.Motion.TickPeriod <= 0 {
		return errors.ConfigValidationError("motion.tick_period", "must be > 0")
	}
	if c.Motion.TraverseRate <= 0 {
		return errors.ConfigValidationError("motion.traverse_rate", "must be > 0")
	}
	if c.Serial.Baud <= 0 {
		return errors.ConfigValidationError("serial.baud", "must be > 0")
	}
	return nil
}
