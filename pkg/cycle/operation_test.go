// Operation runner tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cycle

import (
	"testing"

	"cnc-go-migration/pkg/errors"
)

func TestRunOperationEmpty(t *testing.T) {
	var op operation

	res, err := op.runOperation()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != RunNoOp {
		t.Errorf("result = %v, expected noop", res)
	}
}

func TestRunOperationOrder(t *testing.T) {
	var op operation
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		op.addAction(func(params []float64) error {
			order = append(order, i)
			return nil
		}, nil)
	}

	res, err := op.runOperation()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != RunComplete {
		t.Errorf("result = %v, expected complete", res)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("actions ran out of order: %v", order)
	}

	// Runner reset: next pass is a no-op and new adds are accepted.
	if res, _ := op.runOperation(); res != RunNoOp {
		t.Error("runner did not reset after completion")
	}
	if err := op.addAction(func([]float64) error { return nil }, nil); err != nil {
		t.Errorf("add after completion rejected: %v", err)
	}
}

func TestRunOperationContinue(t *testing.T) {
	var op operation

	invocations := 0
	op.addAction(func(params []float64) error {
		invocations++
		if invocations < 3 {
			return errors.ErrAgain
		}
		return nil
	}, nil)

	followerRan := false
	op.addAction(func(params []float64) error {
		followerRan = true
		return nil
	}, nil)

	for i := 0; i < 2; i++ {
		res, err := op.runOperation()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != RunAgain {
			t.Fatalf("pass %d result = %v, expected again", i, res)
		}
		if followerRan {
			t.Fatal("follower ran before the continuing action completed")
		}
	}

	res, err := op.runOperation()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != RunComplete {
		t.Errorf("result = %v, expected complete", res)
	}
	if invocations != 3 {
		t.Errorf("continuing action ran %d times, expected 3", invocations)
	}
	if !followerRan {
		t.Error("follower never ran")
	}
}

func TestRunOperationParamsStable(t *testing.T) {
	var op operation

	want := []float64{1.5, -2.25, 3.125}
	var seen [][]float64

	calls := 0
	op.addAction(func(params []float64) error {
		cp := make([]float64, len(params))
		copy(cp, params)
		seen = append(seen, cp)
		calls++
		if calls < 3 {
			return errors.ErrAgain
		}
		return nil
	}, want)

	for i := 0; i < 3; i++ {
		op.runOperation()
	}

	if len(seen) != 3 {
		t.Fatalf("action ran %d times, expected 3", len(seen))
	}
	for n, got := range seen {
		if len(got) != paramMax {
			t.Fatalf("invocation %d param length = %d, expected %d", n, len(got), paramMax)
		}
		for i, v := range want {
			if got[i] != v {
				t.Errorf("invocation %d param[%d] = %v, expected %v", n, i, got[i], v)
			}
		}
		if got[3] != 0 {
			t.Errorf("invocation %d unset param = %v, expected 0", n, got[3])
		}
	}
}

func TestAddActionWhileRunning(t *testing.T) {
	var op operation

	op.addAction(func(params []float64) error {
		return errors.ErrAgain
	}, nil)

	if res, _ := op.runOperation(); res != RunAgain {
		t.Fatal("expected the operation to be in progress")
	}

	err := op.addAction(func([]float64) error { return nil }, nil)
	if err == nil {
		t.Fatal("expected add during execution to be rejected")
	}
	if !errors.Is(err, errors.ErrOpNotAccepted) {
		t.Errorf("expected ErrOpNotAccepted, got %v", err)
	}
}

func TestAddActionOverflow(t *testing.T) {
	var op operation

	for i := 0; i < actionMax; i++ {
		if err := op.addAction(func([]float64) error { return nil }, nil); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}

	err := op.addAction(func([]float64) error { return nil }, nil)
	if err == nil {
		t.Fatal("expected overflow to be rejected")
	}
	if !errors.Is(err, errors.ErrOpQueueFull) {
		t.Errorf("expected ErrOpQueueFull, got %v", err)
	}
}

func TestRunOperationFailure(t *testing.T) {
	var op operation

	boom := errors.New(errors.ErrOpFailed, "action exploded")
	op.addAction(func(params []float64) error {
		return boom
	}, nil)

	tailRan := false
	op.addAction(func(params []float64) error {
		tailRan = true
		return nil
	}, nil)

	res, err := op.runOperation()
	if res != RunFailed {
		t.Errorf("result = %v, expected failed", res)
	}
	if !errors.Is(err, errors.ErrOpFailed) {
		t.Errorf("expected the action's error code, got %v", err)
	}
	if tailRan {
		t.Error("actions after a failure must not run")
	}

	// Failure resets: new work is accepted.
	if err := op.addAction(func([]float64) error { return nil }, nil); err != nil {
		t.Errorf("add after failure rejected: %v", err)
	}
	if res, _ := op.runOperation(); res != RunComplete {
		t.Error("operation after failure did not complete")
	}
}

func TestRunResultString(t *testing.T) {
	for res, want := range map[RunResult]string{
		RunNoOp:       "noop",
		RunComplete:   "complete",
		RunAgain:      "again",
		RunFailed:     "failed",
		RunResult(42): "unknown",
	} {
		if got := res.String(); got != want {
			t.Errorf("RunResult(%d).String() = %q, expected %q", res, got, want)
		}
	}
}

func TestActionNumbering(t *testing.T) {
	var op operation
	for i := 0; i < 4; i++ {
		op.addAction(func([]float64) error { return nil }, nil)
	}
	for i := 0; i < 4; i++ {
		if op.actions[i].number != i+1 {
			t.Errorf("action %d numbered %d", i, op.actions[i].number)
		}
	}
}
