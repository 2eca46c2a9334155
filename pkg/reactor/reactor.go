// Package reactor provides the timer-driven event loop for the controller.
// The sequencing tick and the motion runtimes run as timers on this loop;
// callbacks return the next wake time, NEVER to stop firing.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Constants
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// Common errors
var (
	ErrReactorClosed = errors.New("reactor: reactor closed")
	ErrTimeout       = errors.New("reactor: operation timed out")
)

// TimerCallback is called when a timer fires.
// The callback receives the event time and returns the next wake time.
// Return NEVER to unregister the timer.
type TimerCallback func(eventtime float64) float64

// Timer represents a registered timer.
type Timer struct {
	id        uint64
	callback  TimerCallback
	waketime  float64
	isRunning bool
	mu        sync.Mutex
}

// Waketime returns the timer's current wake time.
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Completion represents an async operation that will complete with a result.
type Completion struct {
	reactor *Reactor
	result  interface{}
	done    chan struct{}
	once    sync.Once
}

// Test returns true if the completion has a result.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Complete sets the completion result and wakes any waiters.
func (c *Completion) Complete(result interface{}) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// Wait blocks until the completion is done or the timeout expires.
// Returns the result or timeoutResult if the timeout expires.
func (c *Completion) Wait(timeout time.Duration, timeoutResult interface{}) interface{} {
	select {
	case <-c.done:
		return c.result
	case <-time.After(timeout):
		return timeoutResult
	case <-c.reactor.ctx.Done():
		return timeoutResult
	}
}

// Reactor manages timers, callbacks, and event dispatch.
type Reactor struct {
	mu          sync.RWMutex
	timers      []*Timer
	nextTimerID uint64
	nextWake    float64

	// Async callback queue
	asyncQueue chan func()

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc

	// Running state
	running atomic.Bool
	wg      sync.WaitGroup

	// Start time for monotonic clock
	startTime time.Time
}

// New creates a new Reactor.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		timers:     make([]*Timer, 0),
		nextWake:   NEVER,
		asyncQueue: make(chan func(), 1000),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Monotonic returns the current monotonic time in seconds.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer registers a new timer with the given callback and wake time.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := &Timer{
		id:       atomic.AddUint64(&r.nextTimerID, 1),
		callback: callback,
		waketime: waketime,
	}

	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}

	return timer
}

// UnregisterTimer removes a timer.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer.mu.Lock()
	timer.waketime = NEVER
	timer.mu.Unlock()

	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// UpdateTimer updates a timer's wake time.
func (r *Reactor) UpdateTimer(timer *Timer, waketime float64) {
	timer.mu.Lock()
	if timer.isRunning {
		timer.mu.Unlock()
		return
	}
	timer.waketime = waketime
	timer.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
}

// Completion creates a new Completion object.
func (r *Reactor) Completion() *Completion {
	return &Completion{
		reactor: r,
		done:    make(chan struct{}),
	}
}

// RegisterCallback schedules a one-shot callback to run at the given time.
// Returns a Completion that will contain the callback's result.
func (r *Reactor) RegisterCallback(callback func(eventtime float64) interface{}, waketime float64) *Completion {
	completion := r.Completion()

	timerCallback := func(eventtime float64) float64 {
		completion.Complete(callback(eventtime))
		return NEVER
	}

	r.RegisterTimer(timerCallback, waketime)
	return completion
}

// RegisterAsyncCallback schedules a callback from another goroutine. The
// callback runs on the dispatch loop, so it may safely touch loop-owned
// state. Request entry points use this to marshal onto the loop.
func (r *Reactor) RegisterAsyncCallback(callback func(eventtime float64) interface{}, waketime float64) *Completion {
	completion := r.Completion()

	select {
	case r.asyncQueue <- func() {
		r.RegisterCallback(func(eventtime float64) interface{} {
			result := callback(eventtime)
			completion.Complete(result)
			return result
		}, waketime)
	}:
	default:
		// Queue full, complete with nil
		completion.Complete(nil)
	}

	return completion
}

// Pause sleeps until the given wake time.
func (r *Reactor) Pause(waketime float64) float64 {
	now := r.Monotonic()
	if waketime <= now {
		return now
	}

	if waketime >= NEVER {
		<-r.ctx.Done()
		return r.Monotonic()
	}

	delay := time.Duration((waketime - now) * float64(time.Second))
	select {
	case <-time.After(delay):
	case <-r.ctx.Done():
	}
	return r.Monotonic()
}

// Run starts the reactor's main dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return // Already running
	}

	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the reactor to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait waits for the reactor to stop.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

// dispatchLoop is the main event dispatch loop.
func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	for r.running.Load() {
		eventtime := r.Monotonic()

		r.processAsyncCallbacks()

		timeout := r.checkTimers(eventtime)

		if timeout > 0 {
			delay := time.Duration(timeout * float64(time.Second))
			if delay > time.Second {
				delay = time.Second
			}

			select {
			case <-time.After(delay):
			case fn := <-r.asyncQueue:
				fn()
			case <-r.ctx.Done():
				return
			}
		}
	}
}

// processAsyncCallbacks processes pending async callbacks.
func (r *Reactor) processAsyncCallbacks() {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn()
		default:
			return
		}
	}
}

// checkTimers checks and fires due timers.
// Returns the time until the next timer fires.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}

	timers := make([]*Timer, len(r.timers))
	copy(timers, r.timers)
	r.mu.Unlock()

	r.nextWake = NEVER

	for _, timer := range timers {
		timer.mu.Lock()
		waketime := timer.waketime
		if eventtime >= waketime {
			timer.waketime = NEVER
			timer.isRunning = true
			timer.mu.Unlock()

			newWaketime := timer.callback(eventtime)

			timer.mu.Lock()
			timer.isRunning = false
			if newWaketime < timer.waketime {
				timer.waketime = newWaketime
			}
		}
		waketime = timer.waketime
		timer.mu.Unlock()

		r.mu.Lock()
		if waketime < r.nextWake {
			r.nextWake = waketime
		}
		r.mu.Unlock()
	}

	r.mu.RLock()
	delay := r.nextWake - eventtime
	r.mu.RUnlock()

	if delay < 0 {
		delay = 0
	}
	return delay
}
