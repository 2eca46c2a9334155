// Motion runtime for the CNC controller
//
// The runtime executes one planner's entries on a fixed segment tick. Exec
// is a reactor timer callback; everything it invokes (command callbacks,
// the hold-point hook) therefore runs on the reactor goroutine. Hold-point
// hooks must only store a state value and request a report.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"sync"
	"sync/atomic"

	"cnc-go-migration/pkg/log"
	"cnc-go-migration/pkg/reactor"
)

// Runtime executes buffered entries for one machine context.
type Runtime struct {
	mu         sync.Mutex
	name       string
	planner    *Planner
	tickPeriod float64
	position   Vector
	paused     bool

	holdReq atomic.Bool

	onHoldPoint func()

	logger *log.Logger
}

// NewRuntime creates a runtime bound to one planner.
func NewRuntime(name string, planner *Planner, tickPeriod float64, logger *log.Logger) *Runtime {
	return &Runtime{
		name:       name,
		planner:    planner,
		tickPeriod: tickPeriod,
		logger:     logger,
	}
}

// Name returns the runtime's name.
func (rt *Runtime) Name() string {
	return rt.name
}

// Planner returns the planner this runtime executes from.
func (rt *Runtime) Planner() *Planner {
	return rt.planner
}

// SetHoldPointFunc installs the hook invoked, on the exec goroutine, when
// a requested hold point is reached.
func (rt *Runtime) SetHoldPointFunc(fn func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.onHoldPoint = fn
}

// Position returns the runtime (actual) position.
func (rt *Runtime) Position() Vector {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.position
}

// SetPosition forces the runtime position.
func (rt *Runtime) SetPosition(v Vector) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.position = v
}

// Running reports whether this context's motion is actively executing.
func (rt *Runtime) Running() bool {
	rt.mu.Lock()
	paused := rt.paused
	rt.mu.Unlock()
	return !paused && rt.planner.HasRunnableBuffer()
}

// IsIdle reports whether the runtime is stopped or starved.
func (rt *Runtime) IsIdle() bool {
	return !rt.Running()
}

// RequestHoldPoint asks the runtime to stop at the next segment boundary.
// The stop fires the hold-point hook once.
func (rt *Runtime) RequestHoldPoint() {
	rt.holdReq.Store(true)
}

// RequestExecMove releases a runtime stopped at a hold point so buffered
// entries execute again.
func (rt *Runtime) RequestExecMove() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.paused = false
}

// Start registers the runtime's exec tick on the reactor.
func (rt *Runtime) Start(r *reactor.Reactor) *reactor.Timer {
	return r.RegisterTimer(rt.Exec, reactor.NOW)
}

// Exec advances execution by one segment tick. It is shaped as a reactor
// timer callback and may also be driven directly in tests.
func (rt *Runtime) Exec(eventtime float64) float64 {
	next := eventtime + rt.tickPeriod

	for {
		rt.mu.Lock()
		paused := rt.paused
		rt.mu.Unlock()
		if paused {
			return next
		}

		e, ok := rt.planner.head()
		if !ok {
			// Starved. A pending hold request stops right here.
			rt.consumeHoldRequest()
			return next
		}

		if e.kind == entryCommand {
			rt.planner.popHead()
			if e.command != nil {
				e.command()
			}
			continue // commands are zero-length
		}

		rt.advance(e.move)
		rt.consumeHoldRequest()
		return next
	}
}

// advance moves the runtime position one segment toward the move target,
// popping the move when it completes.
func (rt *Runtime) advance(m Move) {
	rt.mu.Lock()
	step := m.Rate * rt.tickPeriod
	delta := m.Target.Sub(rt.position)
	dist := delta.Length()

	if dist <= step || dist == 0 {
		rt.position = m.Target
		rt.mu.Unlock()
		rt.planner.popHead()
		return
	}

	scale := step / dist
	for i := 0; i < NumAxes; i++ {
		rt.position[i] += delta[i] * scale
	}
	rt.mu.Unlock()
}

// consumeHoldRequest stops the runtime and fires the hold-point hook if a
// hold was requested.
func (rt *Runtime) consumeHoldRequest() {
	if !rt.holdReq.CompareAndSwap(true, false) {
		return
	}

	rt.mu.Lock()
	rt.paused = true
	hook := rt.onHoldPoint
	rt.mu.Unlock()

	if rt.logger != nil {
		rt.logger.Debug("%s stopped at hold point", rt.name)
	}
	if hook != nil {
		hook()
	}
}
