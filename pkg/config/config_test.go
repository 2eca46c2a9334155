// Machine configuration tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnc-go-migration/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "actions", cfg.Feedhold.DefaultType)
	assert.Equal(t, "cycle", cfg.Feedhold.DefaultFinal)
	assert.Equal(t, 1.0, cfg.Spindle.SpinupDelay)
	assert.Equal(t, 0.01, cfg.Motion.TickPeriod)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
feedhold:
  z_lift: 2.5
  default_final: stop
  spindle_pause: true
spindle:
  spinup_delay: 0.75
motion:
  tick_period: 0.005
serial:
  device: /dev/ttyUSB0
  baud: 250000
monitor:
  enable: true
  addr: ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Feedhold.ZLift)
	assert.Equal(t, "stop", cfg.Feedhold.DefaultFinal)
	assert.True(t, cfg.Feedhold.SpindlePause)
	assert.Equal(t, 0.75, cfg.Spindle.SpinupDelay)
	assert.Equal(t, 0.005, cfg.Motion.TickPeriod)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, 250000, cfg.Serial.Baud)
	assert.Equal(t, ":8080", cfg.Monitor.Addr)

	// Defaults still fill the gaps
	assert.Equal(t, "actions", cfg.Feedhold.DefaultType)
	assert.Equal(t, 50.0, cfg.Motion.TraverseRate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigLoad))
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "feedhold: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigLoad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative z lift", func(c *Config) { c.Feedhold.ZLift = -1 }},
		{"bad hold type", func(c *Config) { c.Feedhold.DefaultType = "quick" }},
		{"bad hold final", func(c *Config) { c.Feedhold.DefaultFinal = "park" }},
		{"negative spinup", func(c *Config) { c.Spindle.SpinupDelay = -0.1 }},
		{"zero tick period", func(c *Config) { c.Motion.TickPeriod = 0 }},
		{"negative traverse", func(c *Config) { c.Motion.TraverseRate = -5 }},
		{"zero baud", func(c *Config) { c.Serial.Baud = -9600 }},
		{"instant-resume pairing", func(c *Config) {
			c.Feedhold.DefaultType = "no-actions"
			c.Feedhold.DefaultFinal = "cycle"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigValidation))
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
feedhold:
  z_lift: -3
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigValidation))
}
