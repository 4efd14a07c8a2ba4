package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Kind names an execution model.
type Kind int

const (
	KindPreemptive Kind = iota
	KindCooperative
)

func (k Kind) String() string {
	switch k {
	case KindPreemptive:
		return "preemptive"
	case KindCooperative:
		return "cooperative"
	default:
		return "unknown"
	}
}

// Backend executes tasks. A program uses one backend for all of its tasks;
// see NewDefault.
type Backend interface {
	Kind() Kind

	// Loop is the body of the host's control loop: it yields or sleeps on
	// the preemptive backend and runs due tasks on the cooperative one.
	Loop(ctx context.Context, behavior LoopBehavior, n uint32)

	prepare(t *Task)
	start(t *Task) bool
}

// Metrics receives scheduling measurements. internal/metrics provides a
// Prometheus implementation.
type Metrics interface {
	RecordInvocation(backend, task string, d time.Duration)
	RecordSpawnFailure(task, reason string)
	RecordRetired(backend, task string)
	RecordQueueDepth(backend string, depth int)
}

type nopMetrics struct{}

func (nopMetrics) RecordInvocation(string, string, time.Duration) {}
func (nopMetrics) RecordSpawnFailure(string, string)              {}
func (nopMetrics) RecordRetired(string, string)                   {}
func (nopMetrics) RecordQueueDepth(string, int)                   {}

// Option configures a backend.
type Option func(*options)

type options struct {
	log     zerolog.Logger
	metrics Metrics
	events  chan<- StatusEvent
	clock   Clock
	sleeper Sleeper
}

func defaultOptions() options {
	return options{
		log:     zerolog.Nop(),
		metrics: nopMetrics{},
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithEvents streams status events to ch. Sends never block: events are
// dropped when ch is full.
func WithEvents(ch chan<- StatusEvent) Option {
	return func(o *options) { o.events = ch }
}

// WithClock sets the cooperative backend's time source.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSleeper sets how the preemptive backend waits between calls.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// hooks is the diagnostic plumbing shared by both backends.
type hooks struct {
	kind    Kind
	log     zerolog.Logger
	metrics Metrics
	events  chan<- StatusEvent
	ids     *atomic.Uint64
}

func newHooks(kind Kind, o options) hooks {
	return hooks{
		kind:    kind,
		log:     o.log.With().Str("backend", kind.String()).Logger(),
		metrics: o.metrics,
		events:  o.events,
		ids:     new(atomic.Uint64),
	}
}

func (h *hooks) nextID() TaskID { return TaskID(h.ids.Add(1)) }

func (h *hooks) emit(ev StatusEvent) {
	if h.events == nil {
		return
	}
	ev.Time = time.Now()
	ev.Backend = h.kind
	select {
	case h.events <- ev:
	default:
	}
}

func (h *hooks) taskLog(t *Task) zerolog.Logger {
	return h.log.With().Str("task", t.name).Uint64("id", uint64(t.id)).Logger()
}

// invoke makes one call through b on behalf of t and records it. n counts
// this call.
func (h *hooks) invoke(t *Task, b Binding, n int64) {
	start := time.Now()
	b.call()
	h.metrics.RecordInvocation(h.kind.String(), t.name, time.Since(start))
	h.emit(StatusEvent{Kind: StatusInvoke, TaskID: t.id, Task: t.name, Iteration: n})
}

func (h *hooks) retire(t *Task, n int64) {
	h.metrics.RecordRetired(h.kind.String(), t.name)
	h.emit(StatusEvent{Kind: StatusRetire, TaskID: t.id, Task: t.name, Iteration: n})
	l := h.taskLog(t)
	l.Debug().Int64("calls", n).Msg("task retired")
}
