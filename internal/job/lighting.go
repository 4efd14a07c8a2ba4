// Package job holds the firmware subsystems that run on the scheduler. Their
// hardware access is injected so they run on a host as well.
package job

import (
	"sync"

	"github.com/rs/zerolog"

	"sbjtask/internal/sched"
)

// LuxSensor reads ambient light in lux.
type LuxSensor interface {
	Begin() bool
	ReadLux() float64
}

// Lighting samples a light sensor once a second.
type Lighting struct {
	sensor LuxSensor
	log    zerolog.Logger
	task   *sched.Task

	mu  sync.Mutex
	lux float64
}

type lightingTask struct{}

func (lightingTask) Invoke(l *Lighting) { l.tick() }
func (lightingTask) Schedule() sched.Schedule {
	return sched.Schedule{
		IntervalMs: 1000,
		Iterations: sched.Forever,
		StackSize:  4096,
		Priority:   sched.PriorityLow,
		Core:       0,
	}
}

func NewLighting(b sched.Backend, sensor LuxSensor, log zerolog.Logger) *Lighting {
	l := &Lighting{sensor: sensor, log: log.With().Str("subsystem", "lighting").Logger()}
	l.task = sched.NewDescribedTask[lightingTask](b, "lighting", l)
	return l
}

// Begin starts the sensor and the sampling task. A sensor that fails to
// start is logged; sampling still runs.
func (l *Lighting) Begin() {
	if l.sensor != nil && !l.sensor.Begin() {
		l.log.Warn().Msg("sensor begin failed")
	}
	l.task.Begin()
}

// Lux returns the last reading.
func (l *Lighting) Lux() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lux
}

func (l *Lighting) Task() *sched.Task { return l.task }

func (l *Lighting) tick() {
	if l.sensor == nil {
		return
	}
	v := l.sensor.ReadLux()
	l.mu.Lock()
	l.lux = v
	l.mu.Unlock()
	l.log.Debug().Float64("lux", v).Msg("sample")
}
