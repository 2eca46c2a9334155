// Control-character front end for the CNC controller
//
// Single-byte control characters act immediately, out-of-band with respect
// to the line-oriented command stream: they are plucked from the byte
// stream wherever they appear, even mid-line, so a feedhold is never stuck
// behind buffered command text.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import (
	"cnc-go-migration/pkg/log"
)

// Control characters recognized in the input stream.
const (
	charFeedhold   = '!'
	charCycleStart = '~'
	charQueueFlush = '%'
	charAbortEOT   = 0x04 // ^D
	charAbortCAN   = 0x18 // ^X
)

// maxLine bounds the command line buffer; overlong lines are dropped.
const maxLine = 256

// Requester is the request surface the dispatcher drives. The cycle core
// satisfies it directly; callers on other goroutines wrap it so requests
// land on the control loop.
type Requester interface {
	RequestFeedholdDefault()
	RequestCycleStart()
	RequestQueueFlush()
	RequestFeedholdAbort()
}

// LineFunc receives each completed command line, control characters
// removed. May be nil when only the control characters matter.
type LineFunc func(line string)

// Dispatcher splits an input byte stream into immediate control-character
// requests and buffered command lines.
type Dispatcher struct {
	req      Requester
	onLine   LineFunc
	logger   *log.Logger
	buf      []byte
	overflow bool
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(req Requester, onLine LineFunc, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.GetLogger("control")
	}
	return &Dispatcher{
		req:    req,
		onLine: onLine,
		logger: logger,
		buf:    make([]byte, 0, maxLine),
	}
}

// Feed consumes a chunk of input. Control characters act immediately;
// everything else accumulates until a line terminator.
func (d *Dispatcher) Feed(data []byte) {
	for _, b := range data {
		switch b {
		case charFeedhold:
			d.logger.Debug("control: feedhold (!)")
			d.req.RequestFeedholdDefault()
		case charCycleStart:
			d.logger.Debug("control: cycle start (~)")
			d.req.RequestCycleStart()
		case charQueueFlush:
			d.logger.Debug("control: queue flush (%%)")
			d.req.RequestQueueFlush()
		case charAbortEOT, charAbortCAN:
			d.logger.Debug("control: feedhold abort (0x%02x)", b)
			d.req.RequestFeedholdAbort()
		case '\n', '\r':
			d.flushLine()
		default:
			if len(d.buf) >= maxLine {
				if !d.overflow {
					d.logger.Warn("control: line too long, dropping")
					d.overflow = true
				}
				continue
			}
			d.buf = append(d.buf, b)
		}
	}
}

// flushLine delivers the buffered line. Overlong lines are discarded whole.
func (d *Dispatcher) flushLine() {
	if d.overflow {
		d.overflow = false
		d.buf = d.buf[:0]
		return
	}
	if len(d.buf) == 0 {
		return
	}
	line := string(d.buf)
	d.buf = d.buf[:0]
	if d.onLine != nil {
		d.onLine(line)
	}
}
