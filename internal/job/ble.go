package job

import (
	"sbjtask/internal/sched"
)

// DefaultBLEPollMs is how often the radio stack is serviced.
const DefaultBLEPollMs = 100

// NewBLEPoller services a radio stack through a plain function. The radio
// keeps no per-instance state on our side, so there is no target object.
func NewBLEPoller(b sched.Backend, poll func(), s sched.Schedule) *sched.Task {
	return sched.NewFuncTask(b, "ble", poll, s)
}

// BLESchedule is the default poller schedule.
func BLESchedule() sched.Schedule {
	s := sched.DefaultSchedule()
	s.IntervalMs = DefaultBLEPollMs
	return s
}
