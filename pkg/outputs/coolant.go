// Coolant control for the CNC controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package outputs

import (
	"sync"

	"cnc-go-migration/pkg/log"
	"cnc-go-migration/pkg/motion"
)

// CoolantState is a coolant channel's commanded state.
type CoolantState int

const (
	CoolantOff CoolantState = iota
	CoolantOn
	CoolantPaused
)

// String returns the state name.
func (s CoolantState) String() string {
	switch s {
	case CoolantOff:
		return "off"
	case CoolantOn:
		return "on"
	case CoolantPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Coolant tracks the mist and flood channels.
type Coolant struct {
	mu     sync.Mutex
	mist   CoolantState
	flood  CoolantState
	logger *log.Logger
}

// NewCoolant creates a coolant controller.
func NewCoolant(logger *log.Logger) *Coolant {
	return &Coolant{logger: logger}
}

// SetMist switches the mist channel on or off.
func (c *Coolant) SetMist(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.mist = CoolantOn
	} else {
		c.mist = CoolantOff
	}
}

// SetFlood switches the flood channel on or off.
func (c *Coolant) SetFlood(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.flood = CoolantOn
	} else {
		c.flood = CoolantOff
	}
}

// Mist returns the mist channel state.
func (c *Coolant) Mist() CoolantState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mist
}

// Flood returns the flood channel state.
func (c *Coolant) Flood() CoolantState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flood
}

// PauseSync queues a pause of both channels at the planner's next sync
// point. Channels that are off stay off.
func (c *Coolant) PauseSync(p *motion.Planner) error {
	return p.QueueCommand(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		changed := false
		if c.mist == CoolantOn {
			c.mist = CoolantPaused
			changed = true
		}
		if c.flood == CoolantOn {
			c.flood = CoolantPaused
			changed = true
		}
		if changed && c.logger != nil {
			c.logger.Info("coolant paused")
		}
	})
}

// ResumeSync queues a resume of both channels at the planner's next sync
// point. Only paused channels resume.
func (c *Coolant) ResumeSync(p *motion.Planner) error {
	return p.QueueCommand(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		changed := false
		if c.mist == CoolantPaused {
			c.mist = CoolantOn
			changed = true
		}
		if c.flood == CoolantPaused {
			c.flood = CoolantOn
			changed = true
		}
		if changed && c.logger != nil {
			c.logger.Info("coolant resumed")
		}
	})
}

// GetStatus returns the coolant status map.
func (c *Coolant) GetStatus() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"mist":  c.mist.String(),
		"flood": c.flood.String(),
	}
}
