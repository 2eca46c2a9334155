// Operation runner for the CNC controller
//
// An operation is a short, fixed-capacity sequence of actions executed in
// FIFO order by the sequencing tick. Actions signal three outcomes through
// their error return: nil (complete, advance to the next action),
// errors.ErrAgain (keep the cursor, re-invoke next tick), or any other
// error (fail the whole operation).
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"cnc-go-migration/pkg/errors"
)

const (
	paramMax  = 4
	actionMax = 12
)

// ActionFunc is a single step of an operation. It receives the parameter
// buffer captured when the action was added; the same buffer is passed on
// every re-invocation.
type ActionFunc func(params []float64) error

type action struct {
	number int
	fn     ActionFunc
	params [paramMax]float64
}

// RunResult is the outcome of one runner pass.
type RunResult int

const (
	// RunNoOp means no operation was queued.
	RunNoOp RunResult = iota

	// RunComplete means the last action completed and the runner reset.
	RunComplete

	// RunAgain means the current action wants another invocation.
	RunAgain

	// RunFailed means an action failed and the runner reset.
	RunFailed
)

// String returns the result name.
func (r RunResult) String() string {
	switch r {
	case RunNoOp:
		return "noop"
	case RunComplete:
		return "complete"
	case RunAgain:
		return "again"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// operation holds queued actions and the add/run cursors.
type operation struct {
	actions     [actionMax]action
	addCursor   int
	runCursor   int
	inOperation bool
}

// reset clears the actions and both cursors.
func (op *operation) reset() {
	*op = operation{}
}

// pending reports whether any actions are queued.
func (op *operation) pending() bool {
	return op.addCursor > 0
}

// addAction appends an action. Adds are rejected while the operation is
// executing, and when the action array is full.
func (op *operation) addAction(fn ActionFunc, params []float64) error {
	if op.inOperation {
		return errors.OpNotAcceptedError()
	}
	if op.addCursor >= actionMax {
		return errors.OpQueueFullError()
	}

	a := &op.actions[op.addCursor]
	a.number = op.addCursor + 1
	a.fn = fn
	a.params = [paramMax]float64{}
	for i := 0; i < paramMax && i < len(params); i++ {
		a.params[i] = params[i]
	}
	op.addCursor++
	return nil
}

// runOperation advances the queued actions. It runs actions until one
// returns ErrAgain (operation continues next tick), one fails (operation
// resets, error surfaced), or all complete (operation resets).
func (op *operation) runOperation() (RunResult, error) {
	if !op.pending() {
		return RunNoOp, nil
	}
	op.inOperation = true

	for op.runCursor < op.addCursor {
		a := &op.actions[op.runCursor]
		err := a.fn(a.params[:])
		if err == nil {
			op.runCursor++
			continue
		}
		if errors.IsAgain(err) {
			return RunAgain, nil
		}
		op.reset()
		return RunFailed, err
	}

	op.reset()
	return RunComplete, nil
}
