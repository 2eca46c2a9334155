// Motion planner buffers for the CNC controller
//
// The planner is a FIFO of move buffers and zero-length command entries.
// Command entries carry a callback that the runtime invokes, in stream
// order, when execution reaches them; holds use this to synchronize state
// transitions with the motion stream.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"sync"

	"cnc-go-migration/pkg/errors"
	"cnc-go-migration/pkg/log"
)

// BufferDepth is the number of entries a planner can hold.
const BufferDepth = 48

type entryKind int

const (
	entryMove entryKind = iota
	entryCommand
)

// Move is a straight-line move to an absolute target at a given rate.
type Move struct {
	Target Vector
	Rate   float64 // units/s, must be > 0
}

type entry struct {
	kind    entryKind
	move    Move
	command func()
}

// Planner buffers moves and commands for one machine context.
type Planner struct {
	mu        sync.Mutex
	name      string
	entries   []entry
	position  Vector // planned position: target of the last buffered move
	arcActive bool
	logger    *log.Logger
}

// NewPlanner creates an empty planner.
func NewPlanner(name string, logger *log.Logger) *Planner {
	return &Planner{
		name:    name,
		entries: make([]entry, 0, BufferDepth),
		logger:  logger,
	}
}

// Name returns the planner's name.
func (p *Planner) Name() string {
	return p.name
}

// AppendMove buffers a straight-line move to target.
func (p *Planner) AppendMove(target Vector, rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) >= BufferDepth {
		return errors.PlannerFullError(p.name)
	}

	p.entries = append(p.entries, entry{kind: entryMove, move: Move{Target: target, Rate: rate}})
	p.position = target
	return nil
}

// QueueCommand buffers a zero-length command entry. The runtime invokes fn
// when execution reaches it.
func (p *Planner) QueueCommand(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) >= BufferDepth {
		return errors.PlannerFullError(p.name)
	}

	p.entries = append(p.entries, entry{kind: entryCommand, command: fn})
	return nil
}

// HasRunnableBuffer reports whether any entry is buffered. A partially
// executed move still counts: it stays at the head until it completes.
func (p *Planner) HasRunnableBuffer() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) > 0
}

// Depth returns the number of buffered entries.
func (p *Planner) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Reset discards all buffered entries and any active arc.
func (p *Planner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = p.entries[:0]
	p.arcActive = false
}

// Position returns the planned position.
func (p *Planner) Position() Vector {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition forces the planned position, used when seeding a fresh
// context or reconciling after a queue flush.
func (p *Planner) SetPosition(v Vector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = v
}

// BeginArc marks an arc generator as feeding this planner.
func (p *Planner) BeginArc() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arcActive = true
}

// AbortArc cancels any active arc generator.
func (p *Planner) AbortArc() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arcActive = false
}

// ArcActive reports whether an arc generator is feeding this planner.
func (p *Planner) ArcActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.arcActive
}

// head returns the head entry without removing it.
func (p *Planner) head() (entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return entry{}, false
	}
	return p.entries[0], true
}

// popHead removes the head entry.
func (p *Planner) popHead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) > 0 {
		p.entries = p.entries[1:]
	}
}
