// Motion runtime tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"testing"
)

// drive runs Exec for n ticks with synthetic event times.
func drive(rt *Runtime, n int) {
	tm := 0.0
	for i := 0; i < n; i++ {
		tm = rt.Exec(tm)
	}
}

func TestRuntimeExecutesMove(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)

	target := Vector{1, 0, 0}
	p.AppendMove(target, 10) // 0.1 units/tick, 10 ticks

	if !rt.Running() {
		t.Error("runtime should be running with a buffered move")
	}

	drive(rt, 20)

	if rt.Position() != target {
		t.Errorf("position = %v, expected %v", rt.Position(), target)
	}
	if p.HasRunnableBuffer() {
		t.Error("move should have been popped on completion")
	}
	if rt.Running() {
		t.Error("runtime should be idle after completing all moves")
	}
}

func TestRuntimeRunsCommandsInOrder(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)

	var order []int
	p.QueueCommand(func() { order = append(order, 1) })
	p.AppendMove(Vector{0.05}, 10) // completes in one tick
	p.QueueCommand(func() { order = append(order, 2) })

	drive(rt, 3)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("commands ran out of order: %v", order)
	}
}

func TestRuntimeCommandAfterMove(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)

	ran := false
	p.AppendMove(Vector{1}, 10) // 10 ticks
	p.QueueCommand(func() { ran = true })

	drive(rt, 5)
	if ran {
		t.Error("command ran before the move completed")
	}

	drive(rt, 10)
	if !ran {
		t.Error("command did not run after the move completed")
	}
}

func TestRuntimeHoldPoint(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)

	holds := 0
	rt.SetHoldPointFunc(func() { holds++ })

	p.AppendMove(Vector{1}, 10)
	drive(rt, 3)

	rt.RequestHoldPoint()
	drive(rt, 5)

	if holds != 1 {
		t.Fatalf("hold-point hook fired %d times, expected 1", holds)
	}
	if rt.Running() {
		t.Error("runtime should be stopped at the hold point")
	}
	if !p.HasRunnableBuffer() {
		t.Error("partial move should remain buffered across a hold")
	}

	held := rt.Position()
	if held == (Vector{}) || held == (Vector{1}) {
		t.Errorf("expected a mid-move hold position, got %v", held)
	}

	// Nothing moves while stopped.
	drive(rt, 5)
	if rt.Position() != held {
		t.Error("position changed while stopped at hold point")
	}

	// Resume completes the move.
	rt.RequestExecMove()
	drive(rt, 20)
	if rt.Position() != (Vector{1}) {
		t.Errorf("position = %v after resume, expected {1}", rt.Position())
	}
}

func TestRuntimeHoldWhileStarved(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)

	holds := 0
	rt.SetHoldPointFunc(func() { holds++ })

	rt.RequestHoldPoint()
	drive(rt, 2)

	if holds != 1 {
		t.Errorf("hold-point hook fired %d times, expected 1", holds)
	}
	if rt.Running() {
		t.Error("runtime should be stopped")
	}
}

func TestRuntimeFlushPreservesPosition(t *testing.T) {
	p := NewPlanner("p1", nil)
	rt := NewRuntime("r1", p, 0.01, nil)
	rt.SetHoldPointFunc(func() {})

	p.AppendMove(Vector{1}, 10)
	p.AppendMove(Vector{2}, 10)
	drive(rt, 4)

	rt.RequestHoldPoint()
	drive(rt, 1)

	held := rt.Position()
	p.Reset()

	if p.HasRunnableBuffer() {
		t.Error("planner should be empty after reset")
	}
	if rt.Position() != held {
		t.Error("flush must preserve the runtime position")
	}

	// Resuming with an empty planner goes nowhere.
	rt.RequestExecMove()
	drive(rt, 5)
	if rt.Position() != held {
		t.Error("position changed after flush with empty planner")
	}
}
