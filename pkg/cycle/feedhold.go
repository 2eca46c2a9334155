// Feedhold state machine for the CNC controller
//
// Hold progression on the Primary context:
//
//	Off → Requested → Sync → ActionStart → Pending → Done → Hold
//	    → ExitPending → ExitDone → Off
//
// The Secondary context only ever takes the sync-only path:
//
//	Off → Requested → Sync → Off
//
// The exec goroutine advances exactly three edges, each with a CAS so a
// hold dropped by an abort cannot be resurrected: Sync→ActionStart at the
// hold point, Pending→Done and ExitPending→ExitDone from queued sync
// commands. Every other transition happens on the sequencing side.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"cnc-go-migration/pkg/errors"
	"cnc-go-migration/pkg/motion"
)

// RequestFeedhold asks the active context to hold with the given entry and
// termination variants. Ignored if that context already has a hold in any
// stage. The request is promoted immediately when motion is running,
// otherwise it stays Requested and is re-examined every tick.
func (c *Core) RequestFeedhold(t HoldType, final HoldFinal) {
	m := c.ActiveMachine()
	if m.HoldState() != FeedholdOff {
		c.logger.Debug("feedhold request ignored, %s already at %s", m.name, m.HoldState())
		return
	}
	if m == c.p2 && !m.runtime.Running() {
		// Secondary has no pending-promotion semantics: there is nothing
		// to stop, so the request is discarded rather than latched.
		c.logger.Debug("feedhold request ignored, %s stationary", m.name)
		return
	}
	if t != HoldTypeActions && final == FinalCycle {
		c.logger.Warn("hold without entry actions and a cycle final resumes immediately")
	}

	m.setHoldType(t)
	m.setHoldFinal(final)
	m.setHoldState(FeedholdRequested)
	c.logger.WithField("context", m.name).
		WithField("type", t.String()).
		WithField("final", final.String()).
		Info("feedhold requested")

	c.initiateFeedhold()
}

// RequestFeedholdDefault holds with the configured default variants.
func (c *Core) RequestFeedholdDefault() {
	c.RequestFeedhold(c.cfg.DefaultHoldType, c.cfg.DefaultHoldFinal)
}

// RequestCycleStart asks to start or resume motion: a direct start when no
// hold is active, or the hold exit sequence once the hold is parked.
func (c *Core) RequestCycleStart() {
	c.cycleStartReq.Store(true)
	c.initiateCycleStart()
}

// RequestQueueFlush asks to flush the Primary planner. Honored only while
// a hold is in effect; without one the request has no observable effect.
func (c *Core) RequestQueueFlush() {
	if c.p1.HoldState() == FeedholdOff {
		c.logger.Debug("queue flush request ignored, no hold in effect")
		return
	}
	c.p1.setFlushState(FlushRequested)
}

// RequestFeedholdAbort latches an abort of any hold in progress. Safe to
// call from any goroutine.
func (c *Core) RequestFeedholdAbort() {
	c.holdAbort.Store(true)
}

// initiateFeedhold promotes Requested holds whose context is actually
// moving. Primary gets the entry variant its request named; Secondary only
// ever gets the sync-only action.
func (c *Core) initiateFeedhold() {
	p1, p2 := c.p1, c.p2

	if p1.HoldState() == FeedholdRequested && p1.runtime.Running() {
		var err error
		switch p1.HoldType() {
		case HoldTypeActions:
			err = c.ops.addAction(c.feedholdWithActions, nil)
		default:
			// No-actions and sync-only requests on Primary park without
			// entry actions; their termination runs as soon as the hold
			// point is reached.
			if err = c.ops.addAction(c.feedholdWithNoActions, nil); err == nil {
				c.addFinalAction(p1.HoldFinal())
			}
		}
		if err != nil {
			c.logger.WithError(err).Warn("feedhold entry not queued")
			return
		}
		p1.setHoldState(FeedholdSync)
		p1.runtime.RequestHoldPoint()
		return
	}

	if p2.HoldState() == FeedholdRequested && p2.runtime.Running() {
		if err := c.ops.addAction(c.feedholdWithSync, nil); err != nil {
			// An operation in flight rejects the add; retried next tick.
			c.logger.WithError(err).Debug("secondary feedhold not queued")
			return
		}
		p2.setHoldState(FeedholdSync)
		p2.runtime.RequestHoldPoint()
	}
}

// holdPointReached runs on the exec goroutine when a runtime stops at a
// requested hold point. It may only advance the state enum and request a
// report.
func (c *Core) holdPointReached(m *Machine) {
	if m.casHoldState(FeedholdSync, FeedholdActionStart) {
		c.reports.RequestStatusReport(true)
	}
}

// abortPending reports whether an abort should pre-empt the calling
// action. Drops wait until the hold point has been reached.
func (c *Core) abortPending() bool {
	if !c.holdAbort.Load() {
		return false
	}
	switch c.p1.HoldState() {
	case FeedholdRequested, FeedholdSync:
		return false
	}
	return true
}

// feedholdWithActions is the hold entry action for the with-actions
// variant: context switch, Z lift, spindle/coolant pause, then a planner
// sync command that parks the hold.
func (c *Core) feedholdWithActions(params []float64) error {
	if c.abortPending() {
		c.feedholdAbortDrop()
		return nil
	}

	p1, p2 := c.p1, c.p2
	switch p1.HoldState() {
	case FeedholdActionStart:
		p1.setHoldState(FeedholdPending)
		c.enterSecondary()

		// Everything below runs in the Secondary context; the hold
		// position is the return target.
		holdPos := p2.runtime.Position()
		p1.setReturnPosition(holdPos)

		if c.cfg.ZLift > 0 {
			prev := p2.gm.distanceMode
			p2.gm.distanceMode = DistanceIncremental
			var v motion.Vector
			v[motion.AxisZ] = c.cfg.ZLift
			var f [motion.NumAxes]bool
			f[motion.AxisZ] = true
			if err := p2.straightTraverse(v, f, c.cfg.TraverseRate); err != nil {
				p2.gm.distanceMode = prev
				return err
			}
			p2.gm.distanceMode = prev
			p1.returnFlags[motion.AxisZ] = true
		}

		if c.cfg.SpindlePause && c.spindle != nil {
			if err := c.spindle.PauseSync(p2.planner); err != nil {
				return err
			}
		}
		if c.cfg.CoolantPause && c.coolant != nil {
			if err := c.coolant.PauseSync(p2.planner); err != nil {
				return err
			}
		}

		if err := p2.planner.QueueCommand(func() {
			if p1.casHoldState(FeedholdPending, FeedholdDone) {
				c.reports.RequestStatusReport(true)
			}
		}); err != nil {
			return err
		}
		p2.runtime.RequestExecMove()
		return errors.ErrAgain

	case FeedholdDone:
		p1.setHoldState(FeedholdHold)
		c.logger.Info("feedhold parked")
		c.reports.RequestStatusReport(true)
		return nil

	default:
		// Waiting for the hold point or for the sync command.
		return errors.ErrAgain
	}
}

// feedholdWithNoActions parks the hold at the hold point with no entry
// actions and no context switch.
func (c *Core) feedholdWithNoActions(params []float64) error {
	if c.abortPending() {
		c.feedholdAbortDrop()
		return nil
	}

	p1 := c.p1
	switch p1.HoldState() {
	case FeedholdActionStart:
		p1.setHoldState(FeedholdHold)
		c.logger.Info("feedhold parked (no actions)")
		c.reports.RequestStatusReport(true)
		return nil
	default:
		return errors.ErrAgain
	}
}

// feedholdWithSync is the Secondary-only entry action: stop, ditch the
// rest of Secondary's queue, and drop straight back to Off. Control stays
// in the Secondary context.
func (c *Core) feedholdWithSync(params []float64) error {
	if c.abortPending() {
		c.feedholdAbortDrop()
		return nil
	}

	p2 := c.p2
	switch p2.HoldState() {
	case FeedholdActionStart:
		c.secondaryExit()
		c.reports.RequestStatusReport(true)
		return nil
	default:
		return errors.ErrAgain
	}
}

// feedholdExitWithActions unwinds a with-actions hold: resume outputs,
// return move through the intermediate point (Z plunge last), exit sync
// command, then handle restore and flush reconciliation.
func (c *Core) feedholdExitWithActions(params []float64) error {
	if c.abortPending() {
		c.feedholdAbortDrop()
		return nil
	}

	p1, p2 := c.p1, c.p2
	switch p1.HoldState() {
	case FeedholdHold:
		p1.setHoldState(FeedholdExitPending)

		if c.cfg.CoolantPause && c.coolant != nil {
			if err := c.coolant.ResumeSync(p2.planner); err != nil {
				return err
			}
		}
		if c.cfg.SpindlePause && c.spindle != nil {
			if err := c.spindle.ResumeSync(p2.planner); err != nil {
				return err
			}
		}

		// The lifted axis is excluded from the intermediate move so the
		// plunge comes last.
		p1.returnFlags[motion.AxisZ] = false
		if err := c.gotoReturnPosition(p2, p1.returnPosition, p1.returnFlags); err != nil {
			return err
		}

		if err := p2.planner.QueueCommand(func() {
			if p1.casHoldState(FeedholdExitPending, FeedholdExitDone) {
				c.reports.RequestStatusReport(true)
			}
		}); err != nil {
			return err
		}
		p2.runtime.RequestExecMove()
		return errors.ErrAgain

	case FeedholdExitDone:
		c.restorePrimary()
		if p1.FlushState() == FlushWasRun {
			c.reconcilePosition(p1)
			p1.setFlushState(FlushOff)
		}
		return nil

	default:
		return errors.ErrAgain
	}
}

// feedholdExitWithNoActions unwinds a hold that never switched context.
func (c *Core) feedholdExitWithNoActions(params []float64) error {
	if c.abortPending() {
		c.feedholdAbortDrop()
		return nil
	}

	if c.p1.FlushState() == FlushWasRun {
		c.reconcilePosition(c.p1)
		c.p1.setFlushState(FlushOff)
	}
	return nil
}

// gotoReturnPosition issues the two-leg return: flagged axes (minus Z) to
// the return position first, then all axes.
func (c *Core) gotoReturnPosition(m *Machine, target motion.Vector, flags [motion.NumAxes]bool) error {
	inter := m.runtime.Position()
	for i := 0; i < motion.NumAxes; i++ {
		if flags[i] {
			inter[i] = target[i]
		}
	}

	var all [motion.NumAxes]bool
	for i := range all {
		all[i] = true
	}

	prev := m.gm.distanceMode
	m.gm.distanceMode = DistanceAbsolute
	defer func() { m.gm.distanceMode = prev }()

	if err := m.straightTraverse(inter, all, c.cfg.TraverseRate); err != nil {
		return err
	}
	return m.straightTraverse(target, all, c.cfg.TraverseRate)
}

// addFinalAction queues the termination action for the given variant.
func (c *Core) addFinalAction(final HoldFinal) {
	fn := func(params []float64) error {
		return c.finalizeMachine(final)
	}
	if err := c.ops.addAction(fn, nil); err != nil {
		c.logger.WithError(err).Warn("termination action not queued")
	}
}

// finalizeMachine ends the hold: resume motion if the Primary planner has
// runnable buffers, end the cycle otherwise, force Off, then invoke the
// variant's machine transition.
func (c *Core) finalizeMachine(final HoldFinal) error {
	p1 := c.p1

	if p1.planner.HasRunnableBuffer() {
		c.cycleStart()
		p1.runtime.RequestExecMove()
	} else {
		c.cycleEnd()
	}
	p1.setHoldState(FeedholdOff)

	if cb := c.callbacks.forFinal(final); cb != nil {
		cb()
	}

	c.reports.RequestStatusReport(true)
	c.logger.WithField("final", final.String()).Info("feedhold ended")
	return nil
}

// initiateCycleStart consumes a cycle-start request: a direct start when
// no hold exists, the exit sequence when the hold is parked. A hold still
// progressing leaves the request latched for a later tick.
func (c *Core) initiateCycleStart() {
	p1 := c.p1

	switch p1.HoldState() {
	case FeedholdOff:
		c.cycleStartReq.Store(false)
		if p1.planner.HasRunnableBuffer() {
			c.cycleStart()
			p1.runtime.RequestExecMove()
		}

	case FeedholdRequested:
		if p1.runtime.Running() {
			// Promotion is imminent; leave the request latched.
			return
		}
		// A request that never promoted has nothing to park; cycle start
		// cancels it and goes.
		c.cycleStartReq.Store(false)
		p1.setHoldState(FeedholdOff)
		c.logger.Info("stationary feedhold request cancelled by cycle start")
		if p1.planner.HasRunnableBuffer() {
			c.cycleStart()
			p1.runtime.RequestExecMove()
		}

	case FeedholdHold:
		c.cycleStartReq.Store(false)
		var err error
		switch p1.HoldType() {
		case HoldTypeActions:
			err = c.ops.addAction(c.feedholdExitWithActions, nil)
		default:
			err = c.ops.addAction(c.feedholdExitWithNoActions, nil)
		}
		if err != nil {
			c.logger.WithError(err).Warn("hold exit not queued")
			return
		}
		c.addFinalAction(p1.HoldFinal())
		// Run immediately rather than waiting for the next tick.
		c.runOperationLogged()

	default:
		// Hold still progressing toward Hold; retry on a later tick.
	}
}

// initiateQueueFlush runs a requested flush once the hold is parked and
// the active runtime has drained. A Primary flush always ends the hold;
// with nothing left to run the exit falls through to cycle end.
func (c *Core) initiateQueueFlush() {
	p1 := c.p1
	if p1.FlushState() != FlushRequested {
		return
	}
	if p1.HoldState() != FeedholdHold {
		return
	}
	if !c.ActiveRuntime().IsIdle() {
		return
	}

	p1.planner.AbortArc()
	p1.planner.Reset()
	p1.setFlushState(FlushWasRun)
	c.reports.RequestQueueReport()
	c.logger.Info("queue flushed")

	c.cycleStartReq.Store(true)
}

// feedholdAbortDrop force-drops the hold: flush Secondary if control is
// there, restore Primary handles, reconcile if a flush ran, force Off.
func (c *Core) feedholdAbortDrop() {
	if c.ActiveMachine() == c.p2 {
		c.secondaryExit()
	}
	c.restorePrimary()

	p1 := c.p1
	if p1.FlushState() == FlushWasRun {
		c.reconcilePosition(p1)
	}
	p1.setFlushState(FlushOff)
	p1.setHoldState(FeedholdOff)

	c.holdAbort.Store(false)
	c.reports.RequestStatusReport(true)
	c.logger.Warn("feedhold aborted")
}

// secondaryExit ditches the rest of Secondary's queue while preserving its
// final runtime position, and drops Secondary's hold state to Off.
func (c *Core) secondaryExit() {
	p2 := c.p2
	rpos := p2.runtime.Position()

	p2.planner.AbortArc()
	p2.planner.Reset()
	p2.planner.SetPosition(rpos)
	p2.position = rpos
	p2.gm.target = rpos

	p2.setHoldState(FeedholdOff)
	p2.setFlushState(FlushOff)
	p2.runtime.RequestExecMove()
}
