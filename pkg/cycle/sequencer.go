// Sequencing tick for the CNC controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

// Tick is the reactor timer callback driving the sequencing pass.
func (c *Core) Tick(eventtime float64) float64 {
	c.RunOnce()
	return eventtime + c.cfg.TickPeriod
}

// RunOnce performs one sequencing pass in the canonical order: promote
// requested holds, run a requested queue flush once the hold is parked and
// the active runtime drained, consume a cycle-start request, then give the
// operation runner exactly one pass.
func (c *Core) RunOnce() (RunResult, error) {
	if c.p1.HoldState() == FeedholdRequested || c.p2.HoldState() == FeedholdRequested {
		c.initiateFeedhold()
	}

	c.initiateQueueFlush()

	if c.cycleStartReq.Load() {
		c.initiateCycleStart()
	}

	// An abort with no operation in flight (hold parked, nothing queued)
	// is handled here; aborts racing a queued operation are handled by the
	// actions themselves.
	if c.holdAbort.Load() && !c.ops.pending() {
		st := c.p1.HoldState()
		switch st {
		case FeedholdRequested:
			// Never promoted: no entry action is queued and no hold point
			// is coming, so the drop happens here.
			c.feedholdAbortDrop()
		case FeedholdSync:
			// Wait for the hold point.
		case FeedholdOff:
			if c.ActiveMachine() == c.p1 {
				c.holdAbort.Store(false)
			} else {
				c.feedholdAbortDrop()
			}
		default:
			c.feedholdAbortDrop()
		}
	}

	return c.runOperationLogged()
}

// runOperationLogged gives the runner one pass and logs failures.
func (c *Core) runOperationLogged() (RunResult, error) {
	res, err := c.ops.runOperation()
	if err != nil {
		c.logger.WithError(err).Error("operation failed")
	}
	return res, err
}
