// Machine contexts for the CNC controller
//
// Two machine contexts exist: Primary (p1) runs the program, Secondary
// (p2) runs in-hold motion (lift, return, jogging). Each context owns a
// planner/runtime pair and a motion-model snapshot. The hold state enum is
// stored atomically: the exec goroutine advances Sync→ActionStart and the
// Pending→Done / ExitPending→ExitDone edges, everything else belongs to
// the sequencing side.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"sync/atomic"

	"cnc-go-migration/pkg/motion"
)

// FeedholdState is a context's hold progression.
type FeedholdState int32

const (
	FeedholdOff FeedholdState = iota
	FeedholdRequested
	FeedholdSync
	FeedholdActionStart
	FeedholdPending
	FeedholdDone
	FeedholdHold
	FeedholdExitPending
	FeedholdExitDone
)

// String returns the state name.
func (s FeedholdState) String() string {
	switch s {
	case FeedholdOff:
		return "off"
	case FeedholdRequested:
		return "requested"
	case FeedholdSync:
		return "sync"
	case FeedholdActionStart:
		return "action_start"
	case FeedholdPending:
		return "pending"
	case FeedholdDone:
		return "done"
	case FeedholdHold:
		return "hold"
	case FeedholdExitPending:
		return "exit_pending"
	case FeedholdExitDone:
		return "exit_done"
	default:
		return "unknown"
	}
}

// HoldType selects the hold entry variant.
type HoldType int32

const (
	// HoldTypeActions enters the hold with the full entry sequence:
	// context switch, Z lift, spindle/coolant pause.
	HoldTypeActions HoldType = iota

	// HoldTypeNoActions stops motion and parks without entry actions.
	HoldTypeNoActions

	// HoldTypeSync stops motion and synchronizes only; the Secondary
	// context always holds this way.
	HoldTypeSync
)

// String returns the type name.
func (t HoldType) String() string {
	switch t {
	case HoldTypeActions:
		return "actions"
	case HoldTypeNoActions:
		return "no-actions"
	case HoldTypeSync:
		return "sync"
	default:
		return "unknown"
	}
}

// ParseHoldType maps a config string to a HoldType.
func ParseHoldType(s string) HoldType {
	switch s {
	case "no-actions":
		return HoldTypeNoActions
	case "sync":
		return HoldTypeSync
	default:
		return HoldTypeActions
	}
}

// HoldFinal selects the termination variant run when the hold ends.
type HoldFinal int32

const (
	FinalCycle HoldFinal = iota
	FinalStop
	FinalEnd
	FinalAlarm
	FinalShutdown
	FinalInterlock
)

// String returns the final name.
func (f HoldFinal) String() string {
	switch f {
	case FinalCycle:
		return "cycle"
	case FinalStop:
		return "stop"
	case FinalEnd:
		return "end"
	case FinalAlarm:
		return "alarm"
	case FinalShutdown:
		return "shutdown"
	case FinalInterlock:
		return "interlock"
	default:
		return "unknown"
	}
}

// ParseHoldFinal maps a config string to a HoldFinal.
func ParseHoldFinal(s string) HoldFinal {
	switch s {
	case "stop":
		return FinalStop
	case "end":
		return FinalEnd
	case "alarm":
		return FinalAlarm
	case "shutdown":
		return FinalShutdown
	case "interlock":
		return FinalInterlock
	default:
		return FinalCycle
	}
}

// FlushState tracks queue-flush progression on a context.
type FlushState int32

const (
	FlushOff FlushState = iota
	FlushRequested
	FlushWasRun
)

// String returns the flush state name.
func (s FlushState) String() string {
	switch s {
	case FlushOff:
		return "off"
	case FlushRequested:
		return "requested"
	case FlushWasRun:
		return "was_run"
	default:
		return "unknown"
	}
}

// DistanceMode selects absolute or incremental target interpretation.
type DistanceMode int

const (
	DistanceAbsolute DistanceMode = iota
	DistanceIncremental
)

// MotionMode is the context's active motion mode.
type MotionMode int

const (
	MotionModeTraverse MotionMode = iota
	MotionModeFeed
	MotionModeCancel
)

// gcodeModel is the per-context motion-model snapshot carried across the
// context switch.
type gcodeModel struct {
	target           motion.Vector
	targetComp       motion.Vector // rounding-error compensation residue
	feedRate         float64
	distanceMode     DistanceMode
	motionMode       MotionMode
	absoluteOverride bool
}

// Machine is one machine context.
type Machine struct {
	name    string
	planner *motion.Planner
	runtime *motion.Runtime

	holdState  atomic.Int32
	holdType   atomic.Int32
	holdFinal  atomic.Int32
	flushState atomic.Int32

	gm             gcodeModel
	position       motion.Vector // model position
	returnPosition motion.Vector
	returnFlags    [motion.NumAxes]bool
}

func newMachine(name string, planner *motion.Planner, runtime *motion.Runtime) *Machine {
	return &Machine{
		name:    name,
		planner: planner,
		runtime: runtime,
	}
}

// Name returns the context name ("p1" or "p2").
func (m *Machine) Name() string {
	return m.name
}

// HoldState returns the context's hold state.
func (m *Machine) HoldState() FeedholdState {
	return FeedholdState(m.holdState.Load())
}

func (m *Machine) setHoldState(s FeedholdState) {
	m.holdState.Store(int32(s))
}

// casHoldState advances the hold state only from the expected predecessor.
// The exec-side edges use this so a state dropped by an abort cannot be
// resurrected by a late sync command.
func (m *Machine) casHoldState(from, to FeedholdState) bool {
	return m.holdState.CompareAndSwap(int32(from), int32(to))
}

// HoldType returns the entry variant of the current/last hold.
func (m *Machine) HoldType() HoldType {
	return HoldType(m.holdType.Load())
}

func (m *Machine) setHoldType(t HoldType) {
	m.holdType.Store(int32(t))
}

// HoldFinal returns the termination variant of the current/last hold.
func (m *Machine) HoldFinal() HoldFinal {
	return HoldFinal(m.holdFinal.Load())
}

func (m *Machine) setHoldFinal(f HoldFinal) {
	m.holdFinal.Store(int32(f))
}

// FlushState returns the context's queue-flush state.
func (m *Machine) FlushState() FlushState {
	return FlushState(m.flushState.Load())
}

func (m *Machine) setFlushState(s FlushState) {
	m.flushState.Store(int32(s))
}

// Planner returns the context's planner.
func (m *Machine) Planner() *motion.Planner {
	return m.planner
}

// Runtime returns the context's runtime.
func (m *Machine) Runtime() *motion.Runtime {
	return m.runtime
}

// setModelTarget computes the next model target from per-axis values. In
// incremental mode a compensated summation carries the rounding residue in
// gm.targetComp so long chains of small moves do not drift.
func (m *Machine) setModelTarget(values motion.Vector, flags [motion.NumAxes]bool) {
	for i := 0; i < motion.NumAxes; i++ {
		if !flags[i] {
			m.gm.target[i] = m.position[i]
			continue
		}
		if m.gm.distanceMode == DistanceIncremental {
			y := values[i] - m.gm.targetComp[i]
			t := m.position[i] + y
			m.gm.targetComp[i] = (t - m.position[i]) - y
			m.gm.target[i] = t
		} else {
			m.gm.target[i] = values[i]
		}
	}
}

// straightTraverse buffers a rapid move to the given per-axis values.
func (m *Machine) straightTraverse(values motion.Vector, flags [motion.NumAxes]bool, rate float64) error {
	m.setModelTarget(values, flags)
	m.gm.motionMode = MotionModeTraverse
	if err := m.planner.AppendMove(m.gm.target, rate); err != nil {
		return err
	}
	m.position = m.gm.target
	return nil
}

// straightFeed buffers a feed move at the model feed rate.
func (m *Machine) straightFeed(values motion.Vector, flags [motion.NumAxes]bool) error {
	m.setModelTarget(values, flags)
	m.gm.motionMode = MotionModeFeed
	rate := m.gm.feedRate
	if rate <= 0 {
		rate = 1
	}
	if err := m.planner.AppendMove(m.gm.target, rate); err != nil {
		return err
	}
	m.position = m.gm.target
	return nil
}

// setReturnPosition records where an exiting hold must return to.
func (m *Machine) setReturnPosition(v motion.Vector) {
	m.returnPosition = v
	for i := range m.returnFlags {
		m.returnFlags[i] = false
	}
	m.returnFlags[motion.AxisX] = true
	m.returnFlags[motion.AxisY] = true
}
