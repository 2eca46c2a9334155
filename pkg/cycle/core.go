// Core wiring for the motion-interruption control core
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"sync/atomic"

	"cnc-go-migration/pkg/errors"
	"cnc-go-migration/pkg/log"
	"cnc-go-migration/pkg/motion"
	"cnc-go-migration/pkg/outputs"
	"cnc-go-migration/pkg/reactor"
	"cnc-go-migration/pkg/report"
)

// Config carries the hold behavior settings.
type Config struct {
	// ZLift is the incremental Z move applied on hold entry; zero disables.
	ZLift float64

	// TraverseRate is the rate for lift and return moves (units/s).
	TraverseRate float64

	// SpindlePause / CoolantPause enable output pausing during holds.
	SpindlePause bool
	CoolantPause bool

	// DefaultHoldType / DefaultHoldFinal apply to plain `!` requests.
	DefaultHoldType  HoldType
	DefaultHoldFinal HoldFinal

	// TickPeriod is the sequencing tick and runtime segment period.
	TickPeriod float64
}

// Callbacks are the canonical machine transitions invoked by termination
// actions. Nil callbacks are skipped.
type Callbacks struct {
	ProgramStop func()
	ProgramEnd  func()
	Alarm       func()
	Shutdown    func()
	Interlock   func()
}

func (cb *Callbacks) forFinal(f HoldFinal) func() {
	switch f {
	case FinalStop:
		return cb.ProgramStop
	case FinalEnd:
		return cb.ProgramEnd
	case FinalAlarm:
		return cb.Alarm
	case FinalShutdown:
		return cb.Shutdown
	case FinalInterlock:
		return cb.Interlock
	default:
		return nil
	}
}

// Core owns the two machine contexts, the operation runner, and the
// request latches. All mutation happens on the control loop; cross
// goroutine callers go through Dispatch.
type Core struct {
	cfg Config

	p1 *Machine
	p2 *Machine

	activeMachine atomic.Pointer[Machine]
	activePlanner atomic.Pointer[motion.Planner]
	activeRuntime atomic.Pointer[motion.Runtime]

	ops operation

	cycleStartReq atomic.Bool
	holdAbort     atomic.Bool
	cycleRunning  atomic.Bool

	spindle   *outputs.Spindle
	coolant   *outputs.Coolant
	reports   *report.Broker
	callbacks Callbacks

	r      *reactor.Reactor
	logger *log.Logger
}

// New builds a core with its two planner/runtime pairs. The reactor may be
// nil when the caller drives ticks directly.
func New(cfg Config, r *reactor.Reactor, spindle *outputs.Spindle, coolant *outputs.Coolant,
	reports *report.Broker, callbacks Callbacks, logger *log.Logger) *Core {

	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 0.01
	}
	if cfg.TraverseRate <= 0 {
		cfg.TraverseRate = 50
	}
	if reports == nil {
		reports = report.NewBroker()
	}
	if logger == nil {
		logger = log.GetLogger("cycle")
	}

	mlog := logger.WithPrefix("motion")
	p1p := motion.NewPlanner("p1", mlog)
	p2p := motion.NewPlanner("p2", mlog)
	r1 := motion.NewRuntime("r1", p1p, cfg.TickPeriod, mlog)
	r2 := motion.NewRuntime("r2", p2p, cfg.TickPeriod, mlog)

	c := &Core{
		cfg:       cfg,
		p1:        newMachine("p1", p1p, r1),
		p2:        newMachine("p2", p2p, r2),
		spindle:   spindle,
		coolant:   coolant,
		reports:   reports,
		callbacks: callbacks,
		r:         r,
		logger:    logger,
	}

	r1.SetHoldPointFunc(func() { c.holdPointReached(c.p1) })
	r2.SetHoldPointFunc(func() { c.holdPointReached(c.p2) })

	c.setActive(c.p1)
	return c
}

// Start registers the sequencing tick and both runtimes on the reactor.
func (c *Core) Start() {
	if c.r == nil {
		return
	}
	c.r.RegisterTimer(c.Tick, reactor.NOW)
	c.p1.runtime.Start(c.r)
	c.p2.runtime.Start(c.r)
}

// Dispatch marshals fn onto the control loop. Without a reactor it runs
// inline, which is what single-goroutine tests want.
func (c *Core) Dispatch(fn func()) {
	if c.r == nil {
		fn()
		return
	}
	c.r.RegisterAsyncCallback(func(eventtime float64) interface{} {
		fn()
		return nil
	}, reactor.NOW)
}

// Primary returns the Primary context.
func (c *Core) Primary() *Machine {
	return c.p1
}

// Secondary returns the Secondary context.
func (c *Core) Secondary() *Machine {
	return c.p2
}

// ActiveMachine returns the active context.
func (c *Core) ActiveMachine() *Machine {
	return c.activeMachine.Load()
}

// ActivePlanner returns the active context's planner.
func (c *Core) ActivePlanner() *motion.Planner {
	return c.activePlanner.Load()
}

// ActiveRuntime returns the active context's runtime.
func (c *Core) ActiveRuntime() *motion.Runtime {
	return c.activeRuntime.Load()
}

func (c *Core) setActive(m *Machine) {
	c.activeMachine.Store(m)
	c.activePlanner.Store(m.planner)
	c.activeRuntime.Store(m.runtime)
}

// HasHold reports whether the Primary context has a hold in any stage.
func (c *Core) HasHold() bool {
	return c.p1.HoldState() != FeedholdOff
}

// CycleRunning reports whether a machining cycle is running.
func (c *Core) CycleRunning() bool {
	return c.cycleRunning.Load()
}

// FeedholdCommandBlocker gates command dispatch during holds: it returns
// ErrAgain until the hold fully clears.
func (c *Core) FeedholdCommandBlocker() error {
	if c.HasHold() {
		return errors.ErrAgain
	}
	return nil
}

// QueueProgramMove buffers a program feed move on the Primary context,
// starting a cycle if none is running. Blocked while a hold is in effect.
func (c *Core) QueueProgramMove(values motion.Vector, flags [motion.NumAxes]bool, feedRate float64) error {
	if err := c.FeedholdCommandBlocker(); err != nil {
		return err
	}
	if feedRate > 0 {
		c.p1.gm.feedRate = feedRate
	}
	if err := c.p1.straightFeed(values, flags); err != nil {
		return err
	}
	if !c.cycleRunning.Load() {
		c.cycleStart()
	}
	c.p1.runtime.RequestExecMove()
	return nil
}

func (c *Core) cycleStart() {
	if !c.cycleRunning.Swap(true) {
		c.logger.Info("cycle start")
	}
}

func (c *Core) cycleEnd() {
	if c.cycleRunning.Swap(false) {
		c.logger.Info("cycle end")
	}
}

// enterSecondary snapshots Primary into Secondary, forces the entry
// overrides, seeds all three Secondary position models from the runtime
// position, and repoints the active handles.
func (c *Core) enterSecondary() {
	p1, p2 := c.p1, c.p2

	// Snapshot, then force the documented overrides. The compensation
	// residue (targetComp) rides along untouched.
	p2.gm = p1.gm
	p2.returnPosition = p1.returnPosition
	p2.returnFlags = p1.returnFlags
	p2.setHoldType(p1.HoldType())
	p2.setHoldFinal(p1.HoldFinal())

	p2.planner.Reset()
	p2.setHoldState(FeedholdOff)
	p2.setFlushState(FlushOff)
	p2.gm.motionMode = MotionModeCancel
	p2.gm.absoluteOverride = false
	p2.gm.feedRate = 0
	p2.gm.target = motion.Vector{}
	p2.returnFlags = [motion.NumAxes]bool{}

	rpos := p1.runtime.Position()
	p2.position = rpos
	p2.planner.SetPosition(rpos)
	p2.runtime.SetPosition(rpos)
	p2.runtime.RequestExecMove()

	c.setActive(p2)
	c.logger.Debug("entered secondary context at %v", rpos)
}

// restorePrimary repoints the active handles back to Primary. Positions
// are not touched; reconciliation is the exit action's job. Any hold
// bookkeeping left on Secondary is void once control leaves it.
func (c *Core) restorePrimary() {
	c.p2.setHoldState(FeedholdOff)
	c.p2.setFlushState(FlushOff)
	c.setActive(c.p1)
	c.logger.Debug("restored primary context")
}

// reconcilePosition forces a context's planner and model positions to its
// runtime position, used after a queue flush ran.
func (c *Core) reconcilePosition(m *Machine) {
	rpos := m.runtime.Position()
	m.planner.SetPosition(rpos)
	m.position = rpos
	m.gm.target = rpos
}

// GetStatus returns the monitor-facing status snapshot.
func (c *Core) GetStatus() map[string]interface{} {
	active := c.ActiveMachine()
	status := map[string]interface{}{
		"active_context": active.name,
		"hold_state":     c.p1.HoldState().String(),
		"hold_type":      c.p1.HoldType().String(),
		"hold_final":     c.p1.HoldFinal().String(),
		"flush_state":    c.p1.FlushState().String(),
		"p2_hold_state":  c.p2.HoldState().String(),
		"cycle_running":  c.cycleRunning.Load(),
		"position":       active.runtime.Position(),
		"planner_depth":  c.p1.planner.Depth(),
	}
	if c.spindle != nil {
		status["spindle"] = c.spindle.GetStatus()
	}
	if c.coolant != nil {
		status["coolant"] = c.coolant.GetStatus()
	}
	return status
}
