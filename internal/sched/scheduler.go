// Package sched provides a small periodic-task runner with explicit
// start/stop and pause semantics. Callers own their tasks; the prediction
// core never schedules anything itself.
package sched

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task runs a named function on a fixed interval. It fires once immediately
// on Start, then ticks until the context is cancelled or Stop is called.
// While paused, ticks are skipped but the clock keeps running.
type Task struct {
	name     string
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewTask(name string, interval time.Duration, fn func()) *Task {
	return &Task{name: name, interval: interval, fn: fn}
}

// Start launches the task loop. Calling Start on a running task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.started = true
	t.mu.Unlock()

	go t.run(ctx)
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	t.tick()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("sched: %s stopped", t.name)
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Task) tick() {
	t.mu.Lock()
	paused := t.paused
	t.mu.Unlock()
	if paused {
		return
	}
	t.fn()
}

// Pause skips subsequent ticks until Resume. Safe to call before Start.
func (t *Task) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *Task) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Paused reports whether ticks are currently being skipped.
func (t *Task) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Stop cancels the loop and waits for the in-flight tick, if any, to finish.
// Stopping a task that never started is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.started = false
	t.mu.Unlock()

	cancel()
	<-done
}
