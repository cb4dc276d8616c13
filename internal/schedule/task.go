// Package schedule runs a function on a clamped fixed period.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MinPeriod is the shortest period a Task will run at.
const MinPeriod = 10 * time.Second

// Clamp returns the effective period for a requested one.
func Clamp(period time.Duration) time.Duration {
	if period < MinPeriod {
		return MinPeriod
	}
	return period
}

// Task invokes a function every period until stopped. At most one timer is
// live per Task: Start replaces any previous run.
type Task struct {
	clock clockwork.Clock
	fn    func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	period time.Duration
}

// NewTask creates a stopped task. A nil clock uses the real clock.
func NewTask(clock clockwork.Clock, fn func(ctx context.Context)) *Task {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Task{clock: clock, fn: fn}
}

// Start stops any current run and starts a new one with the clamped period.
// The first invocation happens one period after Start.
func (t *Task) Start(period time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	period = Clamp(period)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := t.clock.NewTicker(period)

	t.cancel = cancel
	t.done = done
	t.period = period

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				t.fn(ctx)
			}
		}
	}()
	return period
}

// Stop cancels the current run and waits for it to exit. Safe to call on a
// stopped task.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Task) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
	t.period = 0
}

// Running reports whether a timer is live.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Period returns the active period, or zero when stopped.
func (t *Task) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}
