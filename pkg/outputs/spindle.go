// Spindle control for the CNC controller
//
// The spindle latches pause/resume at planner sync points: PauseSync and
// ResumeSync queue a zero-length command so the state change lands in
// stream order with the surrounding motion.
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

// SpindleState is the spindle's commanded state.
type SpindleState int

const (
	SpindleOff SpindleState = iota
	SpindleRunning
	SpindlePaused
)

// String returns the state name.
func (s SpindleState) String() string {
	switch s {
	case SpindleOff:
		return "off"
	case SpindleRunning:
		return "running"
	case SpindlePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Spindle tracks commanded spindle state and speed.
type Spindle struct {
	mu          sync.Mutex
	state       SpindleState
	speed       float64
	spinupDelay float64
	logger      *log.Logger
}

// NewSpindle creates a spindle controller.
func NewSpindle(spinupDelay float64, logger *log.Logger) *Spindle {
	return &Spindle{
		spinupDelay: spinupDelay,
		logger:      logger,
	}
}

// Start commands the spindle on at the given speed.
func (s *Spindle) Start(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SpindleRunning
	s.speed = speed
}

// Stop commands the spindle off.
func (s *Spindle) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SpindleOff
	s.speed = 0
}

// State returns the commanded state.
func (s *Spindle) State() SpindleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speed returns the commanded speed.
func (s *Spindle) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// PauseSync queues a pause at the planner's next sync point. A spindle
// that is not running is left alone.
func (s *Spindle) PauseSync(p *motion.Planner) error {
	return p.QueueCommand(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != SpindleRunning {
			return
		}
		s.state = SpindlePaused
		if s.logger != nil {
			s.logger.Info("spindle paused")
		}
	})
}

// ResumeSync queues a resume at the planner's next sync point. Only a
// paused spindle resumes; the configured spinup delay applies.
func (s *Spindle) ResumeSync(p *motion.Planner) error {
	return p.QueueCommand(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != SpindlePaused {
			return
		}
		s.state = SpindleRunning
		if s.logger != nil {
			s.logger.WithField("spinup_delay", s.spinupDelay).Info("spindle resumed")
		}
	})
}

// SpinupDelay returns the configured spinup dwell in seconds.
func (s *Spindle) SpinupDelay() float64 {
	return s.spinupDelay
}

// GetStatus returns the spindle status map.
func (s *Spindle) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"state": s.state.String(),
		"speed": s.speed,
	}
}
