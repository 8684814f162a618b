package clock

import (
	"sync"
	"time"
)

// Task is a cancellable handle for a scheduled activity
// The owner must call Stop when the activity is no longer wanted
type Task struct {
	clock  Clock
	period time.Duration
	repeat bool
	fn     func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
	runs    uint64
}

// After runs fn once after d
func After(c Clock, d time.Duration, fn func()) *Task {
	t := &Task{clock: c, period: d, fn: fn}
	t.arm()
	return t
}

// Every runs fn every period until stopped
// The next run is armed after fn returns, so slow callbacks stretch the cadence instead of bunching
func Every(c Clock, period time.Duration, fn func()) *Task {
	if period <= 0 {
		period = time.Millisecond
	}
	t := &Task{clock: c, period: period, repeat: true, fn: fn}
	t.arm()
	return t
}

func (t *Task) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = t.clock.AfterFunc(t.period, t.fire)
}

func (t *Task) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.runs++
	t.mu.Unlock()

	t.fn()

	if t.repeat {
		t.arm()
		return
	}
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stop cancels the task, idempotent
// No callback starts after Stop returns; a callback already running completes
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Stopped reports whether the task was stopped or a one-shot already ran
func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Runs returns how many times the callback started
func (t *Task) Runs() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Period returns the scheduling interval
func (t *Task) Period() time.Duration {
	return t.period
}
