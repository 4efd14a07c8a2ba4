// Package metrics exports scheduling measurements to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"sbjtask/internal/sched"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// Exporter adapts sched.Metrics to Prometheus collectors.
type Exporter struct {
	invocationsTotal   *prom.CounterVec
	callbackDuration   *prom.HistogramVec
	spawnFailuresTotal *prom.CounterVec
	retiredTotal       *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ sched.Metrics = (*Exporter)(nil)

// NewExporter creates and registers the collectors. Registering twice on the
// same registry reuses the existing collectors.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "sbjtask"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(0.0001, 4, 8)
	}

	invocations := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_invocations_total",
		Help:      "Total number of task callback invocations.",
	}, []string{"backend", "task"})
	duration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_callback_duration_seconds",
		Help:      "Task callback duration in seconds.",
		Buckets:   buckets,
	}, []string{"backend", "task"})
	spawnFailures := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_spawn_failures_total",
		Help:      "Total number of tasks whose execution context could not be created.",
	}, []string{"task", "reason"})
	retired := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_retired_total",
		Help:      "Total number of finite tasks that ran out of iterations.",
	}, []string{"backend", "task"})
	depth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "run_queue_depth",
		Help:      "Current cooperative run queue depth.",
	}, []string{"backend"})

	var err error
	if invocations, err = registerCollector(reg, invocations); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}
	if spawnFailures, err = registerCollector(reg, spawnFailures); err != nil {
		return nil, err
	}
	if retired, err = registerCollector(reg, retired); err != nil {
		return nil, err
	}
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}

	return &Exporter{
		invocationsTotal:   invocations,
		callbackDuration:   duration,
		spawnFailuresTotal: spawnFailures,
		retiredTotal:       retired,
		queueDepth:         depth,
	}, nil
}

func (m *Exporter) RecordInvocation(backend, task string, d time.Duration) {
	if m == nil {
		return
	}
	b, t := normalizeLabel(backend, "unknown"), normalizeLabel(task, "unknown")
	m.invocationsTotal.WithLabelValues(b, t).Inc()
	m.callbackDuration.WithLabelValues(b, t).Observe(d.Seconds())
}

func (m *Exporter) RecordSpawnFailure(task, reason string) {
	if m == nil {
		return
	}
	m.spawnFailuresTotal.WithLabelValues(normalizeLabel(task, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func (m *Exporter) RecordRetired(backend, task string) {
	if m == nil {
		return
	}
	m.retiredTotal.WithLabelValues(normalizeLabel(backend, "unknown"), normalizeLabel(task, "unknown")).Inc()
}

func (m *Exporter) RecordQueueDepth(backend string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(backend, "unknown")).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
