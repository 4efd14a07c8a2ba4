package sched

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

var (
	ErrStackBudget    = errors.New("stack budget exhausted")
	ErrTooManyTasks   = errors.New("task table full")
	ErrBackendStopped = errors.New("backend stopped")
)

// Sleeper waits on behalf of a preemptive task. Sleep returns false if ctx
// ends before d has passed.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) bool
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// threadRecord is the preemptive execution record of a task. Tick counts are
// converted once, when the task is constructed.
type threadRecord struct {
	intervalTicks   uint32
	startDelayTicks uint32
	iterations      int32
	stackSize       uint32
	priority        Priority
	core            CoreID
}

// Preemptive runs every begun task in its own goroutine.
//
// Creating a task's goroutine reserves its declared stack size against the
// configured budget and a slot in the task table; a reservation that does
// not fit fails the spawn. The backend context stands for the lifetime of
// the process: when it ends, every task loop returns at its next wait.
type Preemptive struct {
	hooks
	ctx     context.Context
	ticks   TickConverter
	sleeper Sleeper
	native  bool

	mu         sync.Mutex // protects the task table
	table      map[TaskID]*Task
	heapBytes  uint64
	stackInUse uint64
	maxTasks   int
}

// NewPreemptive creates a preemptive backend bound to ctx.
func NewPreemptive(ctx context.Context, cfg Config, opts ...Option) *Preemptive {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sleeper == nil {
		o.sleeper = timerSleeper{}
	}
	def := DefaultConfig()
	if cfg.TickMS <= 0 {
		cfg.TickMS = def.TickMS
	}
	if cfg.HeapBytes <= 0 {
		cfg.HeapBytes = def.HeapBytes
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = def.MaxTasks
	}

	return &Preemptive{
		hooks:     newHooks(KindPreemptive, o),
		ctx:       ctx,
		ticks:     cfg.ticks(),
		sleeper:   o.sleeper,
		native:    cfg.NativeThreads,
		table:     make(map[TaskID]*Task),
		heapBytes: uint64(cfg.HeapBytes),
		maxTasks:  cfg.MaxTasks,
	}
}

func (p *Preemptive) Kind() Kind { return KindPreemptive }

// Running returns the number of live task goroutines.
func (p *Preemptive) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.table)
}

// StackInUse returns the stack bytes reserved by live task goroutines.
func (p *Preemptive) StackInUse() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stackInUse
}

func (p *Preemptive) prepare(t *Task) {
	t.id = p.nextID()
	s := t.schedule
	t.thread = &threadRecord{
		intervalTicks:   p.ticks.Ticks(s.IntervalMs),
		startDelayTicks: p.ticks.Ticks(s.StartDelayMs),
		iterations:      s.Iterations,
		stackSize:       s.StackSize,
		priority:        s.Priority,
		core:            s.Core,
	}
}

func (p *Preemptive) start(t *Task) bool {
	if err := p.reserve(t); err != nil {
		l := p.taskLog(t)
		l.Warn().Err(err).
			Uint32("stack", t.thread.stackSize).
			Str("priority", t.thread.priority.String()).
			Int("core", int(t.thread.core)).
			Msg("task spawn failed")
		p.metrics.RecordSpawnFailure(t.name, err.Error())
		p.emit(StatusEvent{Kind: StatusSpawnFailed, TaskID: t.id, Task: t.name, Err: err})
		return false
	}

	p.emit(StatusEvent{Kind: StatusBegin, TaskID: t.id, Task: t.name})
	go p.entry(t)
	return true
}

func (p *Preemptive) reserve(t *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return ErrBackendStopped
	}
	if len(p.table) >= p.maxTasks {
		return ErrTooManyTasks
	}
	if p.stackInUse+uint64(t.thread.stackSize) > p.heapBytes {
		return ErrStackBudget
	}
	p.table[t.id] = t
	p.stackInUse += uint64(t.thread.stackSize)
	return nil
}

func (p *Preemptive) release(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.table[t.id]; !ok {
		return
	}
	delete(p.table, t.id)
	p.stackInUse -= uint64(t.thread.stackSize)
}

// entry is the body of a task goroutine. The task itself outlives it; only
// the table slot is reclaimed.
func (p *Preemptive) entry(t *Task) {
	defer p.release(t)

	if !t.binding.init() {
		return
	}

	th := t.thread
	if p.native {
		runtime.LockOSThread()
		applyNative(p.taskLog(t), th.priority, th.core)
	}

	if !p.wait(p.ctx, th.startDelayTicks) {
		return
	}

	var n int64
	if th.iterations == Forever {
		for {
			n++
			p.invoke(t, t.binding, n)
			if !p.wait(p.ctx, th.intervalTicks) {
				return
			}
		}
	}

	for i := int32(0); i < th.iterations; i++ {
		n++
		p.invoke(t, t.binding, n)
		// no wait after the final call
		if i+1 < th.iterations {
			if !p.wait(p.ctx, th.intervalTicks) {
				return
			}
		}
	}
	p.retire(t, n)
}

// wait sleeps for ticks, or yields once when ticks is zero.
func (p *Preemptive) wait(ctx context.Context, ticks uint32) bool {
	if ticks == 0 {
		runtime.Gosched()
		return ctx.Err() == nil
	}
	return p.sleeper.Sleep(ctx, p.ticks.Duration(ticks))
}

func (p *Preemptive) Loop(ctx context.Context, behavior LoopBehavior, n uint32) {
	if n == 0 {
		n = 1
	}
	switch behavior {
	case LoopDelayTicks:
		p.wait(ctx, n)
	case LoopDelayMs:
		p.wait(ctx, p.ticks.Ticks(n))
	default:
		p.wait(ctx, 0)
	}
}

// niceFor maps a priority to a thread nice value. Unprivileged threads can
// only lower their own priority, so High keeps the process default.
func niceFor(prio Priority) int {
	switch prio {
	case PriorityLow:
		return 10
	case PriorityMedium:
		return 5
	default:
		return 0
	}
}
