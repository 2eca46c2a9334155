// Machine context tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"math"
	"testing"

	"cnc-go-migration/pkg/motion"
)

func TestSetModelTargetAbsolute(t *testing.T) {
	m := &Machine{}
	m.position = motion.Vector{1, 2, 3}

	var v motion.Vector
	v[motion.AxisX] = 10
	v[motion.AxisZ] = -5
	var f [motion.NumAxes]bool
	f[motion.AxisX] = true
	f[motion.AxisZ] = true

	m.setModelTarget(v, f)

	want := motion.Vector{10, 2, -5}
	if m.gm.target != want {
		t.Errorf("target = %v, expected %v", m.gm.target, want)
	}
}

func TestSetModelTargetIncrementalCompensation(t *testing.T) {
	m := &Machine{}
	m.gm.distanceMode = DistanceIncremental

	var v motion.Vector
	v[motion.AxisX] = 0.1
	var f [motion.NumAxes]bool
	f[motion.AxisX] = true

	// A long chain of small increments must not accumulate rounding
	// error; the compensation residue absorbs it.
	for i := 0; i < 1000; i++ {
		m.setModelTarget(v, f)
		m.position = m.gm.target
	}

	if diff := math.Abs(m.position[motion.AxisX] - 100.0); diff > 1e-9 {
		t.Errorf("drift after 1000 increments: %g", diff)
	}
}

func TestSetModelTargetUnflaggedAxesHold(t *testing.T) {
	m := &Machine{}
	m.position = motion.Vector{1, 2, 3}
	m.gm.target = motion.Vector{9, 9, 9}

	var v motion.Vector
	v[motion.AxisY] = 7
	var f [motion.NumAxes]bool
	f[motion.AxisY] = true

	m.setModelTarget(v, f)

	if m.gm.target[motion.AxisX] != 1 || m.gm.target[motion.AxisZ] != 3 {
		t.Errorf("unflagged axes moved: %v", m.gm.target)
	}
	if m.gm.target[motion.AxisY] != 7 {
		t.Errorf("flagged axis = %v, expected 7", m.gm.target[motion.AxisY])
	}
}

func TestSetReturnPosition(t *testing.T) {
	m := &Machine{}
	m.returnFlags[motion.AxisC] = true

	pos := motion.Vector{4, 5, 6}
	m.setReturnPosition(pos)

	if m.returnPosition != pos {
		t.Errorf("returnPosition = %v, expected %v", m.returnPosition, pos)
	}
	if !m.returnFlags[motion.AxisX] || !m.returnFlags[motion.AxisY] {
		t.Error("X/Y return flags not set")
	}
	if m.returnFlags[motion.AxisZ] || m.returnFlags[motion.AxisC] {
		t.Error("stale return flags survived")
	}
}

func TestEnterSecondaryOverrides(t *testing.T) {
	r := newRig(t)
	c := r.c
	p1, p2 := c.Primary(), c.Secondary()

	p1.gm.feedRate = 42
	p1.gm.motionMode = MotionModeFeed
	p1.gm.absoluteOverride = true
	p1.gm.target = motion.Vector{7, 8, 9}
	p1.gm.targetComp = motion.Vector{1e-17, -3e-18}
	p1.runtime.SetPosition(motion.Vector{2, 3, 4})

	c.enterSecondary()

	if c.ActiveMachine() != p2 {
		t.Fatal("active context did not switch")
	}
	if c.ActivePlanner() != p2.planner || c.ActiveRuntime() != p2.runtime {
		t.Error("active planner/runtime handles not repointed")
	}

	// Snapshot: the compensation residue rides along.
	if p2.gm.targetComp != p1.gm.targetComp {
		t.Errorf("targetComp = %v, expected %v", p2.gm.targetComp, p1.gm.targetComp)
	}

	// Forced entry overrides.
	if p2.gm.feedRate != 0 {
		t.Errorf("feedRate = %v, expected 0", p2.gm.feedRate)
	}
	if p2.gm.motionMode != MotionModeCancel {
		t.Errorf("motionMode = %v, expected cancel", p2.gm.motionMode)
	}
	if p2.gm.absoluteOverride {
		t.Error("absoluteOverride survived the switch")
	}
	if p2.gm.target != (motion.Vector{}) {
		t.Errorf("target = %v, expected zero", p2.gm.target)
	}
	if p2.returnFlags != ([motion.NumAxes]bool{}) {
		t.Errorf("returnFlags = %v, expected zero", p2.returnFlags)
	}

	// All three Secondary positions seed from the Primary runtime position.
	want := motion.Vector{2, 3, 4}
	if p2.position != want {
		t.Errorf("model position = %v, expected %v", p2.position, want)
	}
	if p2.planner.Position() != want {
		t.Errorf("planner position = %v, expected %v", p2.planner.Position(), want)
	}
	if p2.runtime.Position() != want {
		t.Errorf("runtime position = %v, expected %v", p2.runtime.Position(), want)
	}
}

func TestRestorePrimaryKeepsPositions(t *testing.T) {
	r := newRig(t)
	c := r.c

	c.Primary().runtime.SetPosition(motion.Vector{1, 1, 1})
	c.enterSecondary()
	c.Secondary().runtime.SetPosition(motion.Vector{5, 5, 5})

	c.restorePrimary()

	if c.ActiveMachine() != c.Primary() {
		t.Fatal("active context not restored")
	}
	if got := c.Primary().runtime.Position(); got != (motion.Vector{1, 1, 1}) {
		t.Errorf("primary runtime position = %v, expected unchanged", got)
	}
}

func TestParseHoldType(t *testing.T) {
	cases := map[string]HoldType{
		"actions":    HoldTypeActions,
		"no-actions": HoldTypeNoActions,
		"sync":       HoldTypeSync,
		"bogus":      HoldTypeActions,
	}
	for s, want := range cases {
		if got := ParseHoldType(s); got != want {
			t.Errorf("ParseHoldType(%q) = %v, expected %v", s, got, want)
		}
	}
}

func TestParseHoldFinal(t *testing.T) {
	cases := map[string]HoldFinal{
		"cycle":     FinalCycle,
		"stop":      FinalStop,
		"end":       FinalEnd,
		"alarm":     FinalAlarm,
		"shutdown":  FinalShutdown,
		"interlock": FinalInterlock,
		"bogus":     FinalCycle,
	}
	for s, want := range cases {
		if got := ParseHoldFinal(s); got != want {
			t.Errorf("ParseHoldFinal(%q) = %v, expected %v", s, got, want)
		}
	}
}
