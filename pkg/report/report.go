// Status and queue report requests for the CNC controller
//
// Reports are requested with latched flags so the request side stays
// allocation-free and safe to call from the exec goroutine. Consumers
// (the monitor) drain the flags and listen on Notify for immediate pushes.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package report

import "sync/atomic"

// Broker latches report requests and fans out immediate notifications.
type Broker struct {
	statusReq atomic.Bool
	queueReq  atomic.Bool
	notify    chan struct{}
}

// NewBroker creates a report broker.
func NewBroker() *Broker {
	return &Broker{
		notify: make(chan struct{}, 1),
	}
}

// RequestStatusReport latches a status report request. With immediate set,
// listeners on Notify are woken right away; the send never blocks.
func (b *Broker) RequestStatusReport(immediate bool) {
	b.statusReq.Store(true)
	if immediate {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
}

// RequestQueueReport latches a queue report request.
func (b *Broker) RequestQueueReport() {
	b.queueReq.Store(true)
}

// ConsumeStatusRequest returns true once per latched status request.
func (b *Broker) ConsumeStatusRequest() bool {
	return b.statusReq.CompareAndSwap(true, false)
}

// ConsumeQueueRequest returns true once per latched queue request.
func (b *Broker) ConsumeQueueRequest() bool {
	return b.queueReq.CompareAndSwap(true, false)
}

// Notify returns the immediate-push wakeup channel.
func (b *Broker) Notify() <-chan struct{} {
	return b.notify
}
