// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusBegin
	StatusSpawnFailed
	StatusInvoke
	StatusRetire
	StatusPump
)

// StatusEvent is emitted on key task transitions. It is the diagnostic side
// channel of both backends; nothing in the scheduling path depends on it.
type StatusEvent struct {
	Time      time.Time
	Kind      StatusKind
	Backend   Kind
	TaskID    TaskID
	Task      string
	Iteration int64 // calls made so far, Invoke and Retire only
	Due       int   // tasks serviced, Pump only
	Err       error // SpawnFailed only
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusBegin:
		return "Begin"
	case StatusSpawnFailed:
		return "SpawnFailed"
	case StatusInvoke:
		return "Invoke"
	case StatusRetire:
		return "Retire"
	case StatusPump:
		return "Pump"
	default:
		return "Unknown"
	}
}
