package sched

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LoopBehavior selects what Backend.Loop does on the preemptive backend.
// LoopDelayMs converts with MsToTicks and rounds up, unlike FreeRTOS
// pdMS_TO_TICKS which rounds down.
type LoopBehavior uint8

const (
	LoopYield      LoopBehavior = iota // give up the processor once
	LoopDelayTicks                     // sleep n ticks (at least one)
	LoopDelayMs                        // sleep n milliseconds, rounded up to ticks
)

// RunLoop is a host control loop: every period it calls body, then
// b.Loop(ctx, LoopYield, 0). On the cooperative backend that Loop call is
// the one mandatory pump. RunLoop returns when ctx ends.
func RunLoop(ctx context.Context, b Backend, every time.Duration, body func()) error {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	limiter := rate.NewLimiter(limit, 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			// the next slot lies past the deadline: nothing more will run
			<-ctx.Done()
			return ctx.Err()
		}
		if body != nil {
			body()
		}
		b.Loop(ctx, LoopYield, 0)
	}
}
