package sched

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestRunLoop_PumpsCooperativeBackend verifies the host loop drives the pump
// Given: A cooperative backend with a one-per-pump task
// When: RunLoop runs until the body has executed ten times
// Then: The task was pumped once per body call and RunLoop returns the ctx error
func TestRunLoop_PumpsCooperativeBackend(t *testing.T) {
	clock := &ManualClock{}
	b := NewCooperative(WithClock(clock))

	c := &counter{}
	NewMethodTask(b, "pumped", c, (*counter).inc, Schedule{IntervalMs: 0, Iterations: Forever}).Begin()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	bodies := 0
	err := RunLoop(ctx, b, time.Millisecond, func() {
		bodies++
		if bodies == 10 {
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunLoop() error = %v, want context.Canceled", err)
	}
	// the tenth body cancels ctx, so its Loop call does not pump
	if c.n != 9 {
		t.Errorf("counter = %d, want 9", c.n)
	}
}

func TestRunLoop_Paced(t *testing.T) {
	b := NewCooperative(WithClock(&ManualClock{}))

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	bodies := 0
	err := RunLoop(ctx, b, 20*time.Millisecond, func() { bodies++ })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunLoop() error = %v, want context.DeadlineExceeded", err)
	}

	// one immediate iteration plus at most one per 20ms
	if bodies < 2 || bodies > 7 {
		t.Errorf("bodies = %d in 100ms at 20ms pace, want 2..7", bodies)
	}
}

// TestRunLoop_RunsUntilDeadline verifies RunLoop does not give up before the
// deadline when the next slot would land after it
// Given: A 25ms deadline and a 10ms pace
// When: RunLoop runs
// Then: It returns context.DeadlineExceeded only once the context is done
func TestRunLoop_RunsUntilDeadline(t *testing.T) {
	b := NewCooperative(WithClock(&ManualClock{}))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(t.Context(), 25*time.Millisecond)
		err := RunLoop(ctx, b, 10*time.Millisecond, nil)
		ctxErr := ctx.Err()
		cancel()

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run %d: RunLoop() error = %v, want context.DeadlineExceeded", i, err)
		}
		if ctxErr == nil {
			t.Fatalf("run %d: RunLoop returned before the context ended", i)
		}
	}
}
