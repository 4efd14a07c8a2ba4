// internal/sched/monitor.go

package sched

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Monitor consumes status events from a backend, keeps per-task call totals,
// logs transitions and optionally mirrors every event to a CSV file.
type Monitor struct {
	runID  string
	log    zerolog.Logger
	events chan StatusEvent

	mu        sync.Mutex
	callTotal map[TaskID]int64 // cumulative calls per task
	failed    map[TaskID]error

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewMonitor creates a monitor with an event buffer of the given size.
func NewMonitor(log zerolog.Logger, buffer int) *Monitor {
	id := uuid.NewString()
	return &Monitor{
		runID:     id,
		log:       log.With().Str("run", id).Logger(),
		events:    make(chan StatusEvent, buffer),
		callTotal: make(map[TaskID]int64),
		failed:    make(map[TaskID]error),
	}
}

// Events is the channel to hand to WithEvents.
func (m *Monitor) Events() chan<- StatusEvent { return m.events }

// RunID identifies this monitor's log lines and CSV rows.
func (m *Monitor) RunID() string { return m.runID }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (m *Monitor) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"run_id", "timestamp", "event", "backend", "task_id", "task", "calls", "error"}); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	m.csvFile = f
	m.csvWriter = w
	return nil
}

// Run consumes events until ctx ends, then drains what is buffered.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.closeCSV()

	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-m.events:
					m.handleEvent(ev)
				default:
					return nil
				}
			}
		}
	}
}

// Calls returns the number of calls observed for a task.
func (m *Monitor) Calls(id TaskID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callTotal[id]
}

// SpawnError returns the spawn failure observed for a task, if any.
func (m *Monitor) SpawnError(id TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[id]
}

func (m *Monitor) handleEvent(ev StatusEvent) {
	m.mu.Lock()
	switch ev.Kind {
	case StatusInvoke, StatusRetire:
		m.callTotal[ev.TaskID] = ev.Iteration
	case StatusSpawnFailed:
		m.failed[ev.TaskID] = ev.Err
	}
	m.mu.Unlock()

	l := m.log.With().Str("backend", ev.Backend.String()).Logger()

	// pumps happen every loop iteration; keep them out of normal output and the CSV
	if ev.Kind == StatusPump {
		l.Trace().Int("due", ev.Due).Msg("pump")
		return
	}

	switch ev.Kind {
	case StatusInvoke:
		l.Debug().Str("task", ev.Task).Uint64("id", uint64(ev.TaskID)).Int64("calls", ev.Iteration).Msg("invoke")
	case StatusSpawnFailed:
		l.Error().Str("task", ev.Task).Uint64("id", uint64(ev.TaskID)).Err(ev.Err).Msg("task disabled")
	default:
		l.Info().Str("task", ev.Task).Uint64("id", uint64(ev.TaskID)).Int64("calls", ev.Iteration).Msg(ev.Kind.String())
	}

	// CSV output
	if m.csvWriter != nil {
		errText := ""
		if ev.Err != nil {
			errText = ev.Err.Error()
		}
		rec := []string{
			m.runID,
			ev.Time.Format(time.RFC3339Nano),
			ev.Kind.String(),
			ev.Backend.String(),
			strconv.FormatUint(uint64(ev.TaskID), 10),
			ev.Task,
			strconv.FormatInt(ev.Iteration, 10),
			errText,
		}
		err := m.csvWriter.Write(rec)
		if err == nil {
			m.csvWriter.Flush()
			err = m.csvWriter.Error()
		}
		if err != nil {
			m.log.Error().Err(err).Str("path", m.csvFile.Name()).Msg("csv logging disabled")
			m.closeCSV()
		}
	}
}

func (m *Monitor) closeCSV() {
	if m.csvFile == nil {
		return
	}
	m.csvWriter.Flush()
	m.csvFile.Close()
	m.csvFile = nil
	m.csvWriter = nil
}
