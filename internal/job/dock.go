package job

import (
	"sync"

	"sbjtask/internal/sched"
)

// Docked is the state of a train at the docking station.
type Docked uint8

const (
	DockedNone Docked = iota
	DockedPassive
	DockedCharging
)

func (d Docked) String() string {
	switch d {
	case DockedNone:
		return "none"
	case DockedPassive:
		return "passive"
	case DockedCharging:
		return "charging"
	default:
		return "unknown"
	}
}

// DefaultDockMs is the dock sensor sampling period.
const DefaultDockMs = 250

// Classify maps an analog reading to a dock state.
func Classify(value int) Docked {
	switch {
	case value < 5:
		return DockedNone
	case value < 20:
		return DockedPassive
	default:
		return DockedCharging
	}
}

// DockSensor samples an analog pin and reports dock state changes.
type DockSensor struct {
	read     func() int
	onChange func(Docked)
	task     *sched.Task

	mu       sync.Mutex
	detected Docked
}

// NewDockSensor binds (*DockSensor).sample on schedule s.
func NewDockSensor(b sched.Backend, read func() int, onChange func(Docked), s sched.Schedule) *DockSensor {
	d := &DockSensor{read: read, onChange: onChange}
	d.task = sched.NewMethodTask(b, "dock", d, (*DockSensor).sample, s)
	return d
}

// DockSchedule is the default sampling schedule.
func DockSchedule() sched.Schedule {
	s := sched.DefaultSchedule()
	s.IntervalMs = DefaultDockMs
	return s
}

func (d *DockSensor) Begin() { d.task.Begin() }

func (d *DockSensor) Detected() Docked {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected
}

func (d *DockSensor) Task() *sched.Task { return d.task }

func (d *DockSensor) sample() {
	if d.read == nil {
		return
	}
	detected := Classify(d.read())

	d.mu.Lock()
	changed := detected != d.detected
	d.detected = detected
	d.mu.Unlock()

	if changed && d.onChange != nil {
		d.onChange(detected)
	}
}
