// Report broker tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package report

import "testing"

func TestStatusRequestLatch(t *testing.T) {
	b := NewBroker()

	if b.ConsumeStatusRequest() {
		t.Error("fresh broker should have no status request")
	}

	b.RequestStatusReport(false)
	b.RequestStatusReport(false)

	if !b.ConsumeStatusRequest() {
		t.Error("expected a latched status request")
	}
	if b.ConsumeStatusRequest() {
		t.Error("status request should consume only once")
	}
}

func TestQueueRequestLatch(t *testing.T) {
	b := NewBroker()

	b.RequestQueueReport()
	if !b.ConsumeQueueRequest() {
		t.Error("expected a latched queue request")
	}
	if b.ConsumeQueueRequest() {
		t.Error("queue request should consume only once")
	}
}

func TestImmediateNotify(t *testing.T) {
	b := NewBroker()

	b.RequestStatusReport(true)

	select {
	case <-b.Notify():
	default:
		t.Error("expected an immediate notification")
	}
}

func TestImmediateNotifyNeverBlocks(t *testing.T) {
	b := NewBroker()

	// Nobody draining; repeated requests must not block.
	for i := 0; i < 10; i++ {
		b.RequestStatusReport(true)
	}

	if !b.ConsumeStatusRequest() {
		t.Error("expected a latched status request")
	}
}
