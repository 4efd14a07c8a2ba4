package sched

import (
	"sync"
	"sync/atomic"
)

// TaskID uniquely identifies a task within its backend. IDs follow
// construction order, which the cooperative backend uses for fairness.
type TaskID uint64

const defaultTaskName = "sbjtask"

// Task pairs a binding with a schedule on one backend.
//
// A Task must not be copied: the backend keeps its address for the rest of
// the process. Begin starts it; there is no way to stop or reconfigure it.
type Task struct {
	id       TaskID
	name     string
	schedule Schedule
	binding  Binding
	backend  Backend

	mu    sync.Mutex // serializes Begin
	begun atomic.Bool

	// backend-specific execution record; exactly one is set
	thread *threadRecord
	entry  *queueEntry
}

// NewTask creates a task for an arbitrary binding. The schedule must satisfy
// Validate; an invalid one panics.
func NewTask(b Backend, name string, binding Binding, s Schedule) *Task {
	if b == nil {
		panic("sched: nil backend")
	}
	if binding == nil {
		binding = funcBinding{}
	}
	if name == "" {
		name = defaultTaskName
	}
	t := &Task{
		name:     name,
		schedule: s.mustValidate(),
		binding:  binding,
		backend:  b,
	}
	b.prepare(t)
	return t
}

// NewFuncTask runs fn on schedule s.
func NewFuncTask(b Backend, name string, fn func(), s Schedule) *Task {
	return NewTask(b, name, Func(fn), s)
}

// NewMethodTask runs method on obj on schedule s.
func NewMethodTask[T any](b Backend, name string, obj *T, method func(*T), s Schedule) *Task {
	return NewTask(b, name, Method(obj, method), s)
}

// NewDescribedTask takes both method and schedule from descriptor D.
func NewDescribedTask[D Descriptor[T], T any](b Backend, name string, obj *T) *Task {
	var d D
	return NewTask(b, name, Described[D](obj), d.Schedule())
}

// Begin starts the task. Calling it again is a no-op. If the backend cannot
// create an execution context the task stays not begun and is never retried
// by the backend; the failure is reported through logs and status events.
func (t *Task) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.begun.Load() {
		return
	}
	if !t.backend.start(t) {
		return
	}
	t.begun.Store(true)
}

// Begun reports whether Begin succeeded.
func (t *Task) Begun() bool { return t.begun.Load() }

func (t *Task) ID() TaskID         { return t.id }
func (t *Task) Name() string       { return t.name }
func (t *Task) Schedule() Schedule { return t.schedule }
