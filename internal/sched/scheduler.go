// internal/sched/scheduler.go

package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// queueEntry is the cooperative execution record of a task. It carries its
// own copy of the binding so Pump never has to look the target up elsewhere.
type queueEntry struct {
	task         *Task
	binding      Binding
	intervalMs   uint32
	iterations   int32
	startDelayMs uint32
	runs         int64
	due          uint64
}

// Cooperative runs every task on the goroutine that calls Pump.
//
// Nothing happens between Pump calls; a task's wait is only "not due yet".
// The run queue is a red-black tree ordered by due time and then task ID, so
// tasks due at the same moment run in registration order, one call each per
// Pump. Priority, core and stack size are ignored.
type Cooperative struct {
	hooks
	clock Clock

	mu      sync.Mutex         // protects the run queue
	rbt     *redblacktree.Tree // queue entries keyed by nodeKey
	current atomic.Pointer[Task]
}

// NewCooperative creates an empty run queue. Without WithClock it uses a
// SystemClock started now.
func NewCooperative(opts ...Option) *Cooperative {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewSystemClock()
	}
	return &Cooperative{
		hooks: newHooks(KindCooperative, o),
		clock: o.clock,
		rbt:   redblacktree.NewWith(cmp),
	}
}

func (c *Cooperative) Kind() Kind { return KindCooperative }

// Len returns the number of queued tasks.
func (c *Cooperative) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rbt.Size()
}

// CurrentTask returns the task whose callback Pump is running, or nil
// outside of a callback.
func (c *Cooperative) CurrentTask() *Task { return c.current.Load() }

func (c *Cooperative) prepare(t *Task) {
	t.id = c.nextID()
	s := t.schedule
	t.entry = &queueEntry{
		task:         t,
		binding:      t.binding,
		intervalMs:   s.IntervalMs,
		iterations:   s.Iterations,
		startDelayMs: s.StartDelayMs,
	}
}

func (c *Cooperative) start(t *Task) bool {
	e := t.entry
	c.emit(StatusEvent{Kind: StatusBegin, TaskID: t.id, Task: t.name})

	// A disabled binding is begun but never queued.
	if !e.binding.init() {
		return true
	}

	c.mu.Lock()
	e.due = c.clock.Millis() + uint64(e.startDelayMs)
	c.rbt.Put(nodeKey{due: e.due, id: t.id}, e)
	depth := c.rbt.Size()
	c.mu.Unlock()

	c.metrics.RecordQueueDepth(c.kind.String(), depth)
	return true
}

// Pump runs every task that is due and returns the number of calls made.
// It must be called from one goroutine only, typically once per iteration
// of the host control loop.
func (c *Cooperative) Pump() int {
	now := c.clock.Millis()

	c.mu.Lock()
	var due []*queueEntry
	it := c.rbt.Iterator()
	for it.Next() {
		key := it.Key().(nodeKey)
		if key.due > now {
			break
		}
		due = append(due, it.Value().(*queueEntry))
	}
	for _, e := range due {
		c.rbt.Remove(nodeKey{due: e.due, id: e.task.id})
	}
	c.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	// callbacks run without the lock so they may begin other tasks
	for _, e := range due {
		e.runs++
		c.current.Store(e.task)
		c.invoke(e.task, e.binding, e.runs)
		c.current.Store(nil)

		if e.iterations != Forever && e.runs >= int64(e.iterations) {
			c.retire(e.task, e.runs)
			continue
		}

		e.due = now + uint64(e.intervalMs)
		c.mu.Lock()
		c.rbt.Put(nodeKey{due: e.due, id: e.task.id}, e)
		c.mu.Unlock()
	}

	depth := c.Len()
	c.metrics.RecordQueueDepth(c.kind.String(), depth)
	c.emit(StatusEvent{Kind: StatusPump, Due: len(due)})
	return len(due)
}

// Loop runs one Pump; the behavior only matters on the preemptive backend.
func (c *Cooperative) Loop(ctx context.Context, behavior LoopBehavior, n uint32) {
	if ctx.Err() != nil {
		return
	}
	c.Pump()
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	due uint64
	id  TaskID
}

// nodeKey implements the Comparable interface for red-black tree ordering.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.due < kb.due:
		return -1
	case ka.due > kb.due:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
