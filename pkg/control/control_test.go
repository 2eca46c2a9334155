// Control-character dispatcher tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import (
	"io"
	"strings"
	"testing"

	"cnc-go-migration/pkg/log"
)

type fakeRequester struct {
	feedholds, starts, flushes, aborts int
}

func (f *fakeRequester) RequestFeedholdDefault() { f.feedholds++ }
func (f *fakeRequester) RequestCycleStart()      { f.starts++ }
func (f *fakeRequester) RequestQueueFlush()      { f.flushes++ }
func (f *fakeRequester) RequestFeedholdAbort()   { f.aborts++ }

func quietLogger() *log.Logger {
	l := log.New("control-test")
	l.SetWriter(io.Discard)
	return l
}

func TestControlCharacters(t *testing.T) {
	req := &fakeRequester{}
	d := NewDispatcher(req, nil, quietLogger())

	d.Feed([]byte{'!', '~', '%', 0x04, 0x18, '!'})

	if req.feedholds != 2 {
		t.Errorf("feedholds = %d, expected 2", req.feedholds)
	}
	if req.starts != 1 {
		t.Errorf("cycle starts = %d, expected 1", req.starts)
	}
	if req.flushes != 1 {
		t.Errorf("queue flushes = %d, expected 1", req.flushes)
	}
	if req.aborts != 2 {
		t.Errorf("aborts = %d, expected 2", req.aborts)
	}
}

func TestLineDelivery(t *testing.T) {
	req := &fakeRequester{}
	var lines []string
	d := NewDispatcher(req, func(line string) { lines = append(lines, line) }, quietLogger())

	d.Feed([]byte("G1 X10\nG1 Y5\r\n"))

	if len(lines) != 2 || lines[0] != "G1 X10" || lines[1] != "G1 Y5" {
		t.Errorf("lines = %q, expected [G1 X10, G1 Y5]", lines)
	}
}

func TestControlCharacterMidLine(t *testing.T) {
	req := &fakeRequester{}
	var lines []string
	d := NewDispatcher(req, func(line string) { lines = append(lines, line) }, quietLogger())

	// The feedhold acts immediately and leaves the command line intact.
	d.Feed([]byte("G1 !X10\n"))

	if req.feedholds != 1 {
		t.Errorf("feedholds = %d, expected 1", req.feedholds)
	}
	if len(lines) != 1 || lines[0] != "G1 X10" {
		t.Errorf("lines = %q, expected [G1 X10]", lines)
	}
}

func TestFeedSplitAcrossChunks(t *testing.T) {
	req := &fakeRequester{}
	var lines []string
	d := NewDispatcher(req, func(line string) { lines = append(lines, line) }, quietLogger())

	d.Feed([]byte("G1 X"))
	d.Feed([]byte("10"))
	d.Feed([]byte("\n~"))

	if len(lines) != 1 || lines[0] != "G1 X10" {
		t.Errorf("lines = %q, expected [G1 X10]", lines)
	}
	if req.starts != 1 {
		t.Errorf("cycle starts = %d, expected 1", req.starts)
	}
}

func TestOverlongLineDropped(t *testing.T) {
	req := &fakeRequester{}
	var lines []string
	d := NewDispatcher(req, func(line string) { lines = append(lines, line) }, quietLogger())

	d.Feed([]byte(strings.Repeat("X", maxLine+50)))
	d.Feed([]byte("\nG1 X1\n"))

	if len(lines) != 1 || lines[0] != "G1 X1" {
		t.Errorf("lines = %q, expected only the line after the overflow", lines)
	}

	// Control characters still act during an overflow.
	d.Feed([]byte(strings.Repeat("Y", maxLine+1)))
	d.Feed([]byte{'!'})
	if req.feedholds != 1 {
		t.Errorf("feedholds = %d, expected 1", req.feedholds)
	}
}

func TestEmptyLinesIgnored(t *testing.T) {
	req := &fakeRequester{}
	var lines []string
	d := NewDispatcher(req, func(line string) { lines = append(lines, line) }, quietLogger())

	d.Feed([]byte("\n\r\n\n"))

	if len(lines) != 0 {
		t.Errorf("lines = %q, expected none", lines)
	}
}
