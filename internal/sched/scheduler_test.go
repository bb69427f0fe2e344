package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskRunsImmediatelyAndTicks(t *testing.T) {
	var count atomic.Int64
	task := NewTask("test", 10*time.Millisecond, func() { count.Add(1) })

	task.Start(context.Background())
	defer task.Stop()

	deadline := time.After(2 * time.Second)
	for count.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("task fired %d times, want at least 3", count.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTaskPauseSkipsTicks(t *testing.T) {
	var count atomic.Int64
	task := NewTask("test", 10*time.Millisecond, func() { count.Add(1) })
	task.Pause()

	task.Start(context.Background())
	defer task.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("paused task fired %d times, want 0", got)
	}

	task.Resume()
	deadline := time.After(2 * time.Second)
	for count.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("task did not fire after Resume")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTaskStopIsIdempotent(t *testing.T) {
	task := NewTask("test", time.Hour, func() {})
	task.Stop() // never started

	task.Start(context.Background())
	task.Stop()
	task.Stop()
}

func TestTaskStartTwice(t *testing.T) {
	var count atomic.Int64
	task := NewTask("test", time.Hour, func() { count.Add(1) })

	task.Start(context.Background())
	task.Start(context.Background())
	defer task.Stop()

	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("immediate fire count = %d, want 1 (second Start ignored)", got)
	}
}
