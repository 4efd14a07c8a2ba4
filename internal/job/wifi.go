package job

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"sbjtask/internal/sched"
)

// Connector joins a network, falling back to a setup portal named apName.
type Connector interface {
	AutoConnect(apName string) bool
}

// Wifi makes one connection attempt in the background.
type Wifi struct {
	name      string
	connector Connector
	log       zerolog.Logger
	onConnect func()
	task      *sched.Task

	attempted atomic.Bool
	ok        atomic.Bool
}

type wifiAutoConnectTask struct{}

func (wifiAutoConnectTask) Invoke(w *Wifi) { w.autoConnect() }
func (wifiAutoConnectTask) Schedule() sched.Schedule {
	return sched.Schedule{
		IntervalMs: 10,
		Iterations: 1,
		StackSize:  8192,
		Priority:   sched.PriorityMedium,
		Core:       0,
	}
}

// NewWifi creates the subsystem. onConnect, if set, runs after a successful
// connection (the firmware resyncs its clock there).
func NewWifi(b sched.Backend, name string, connector Connector, onConnect func(), log zerolog.Logger) *Wifi {
	if name == "" {
		name = "SBJ"
	}
	w := &Wifi{
		name:      name,
		connector: connector,
		onConnect: onConnect,
		log:       log.With().Str("subsystem", "wifi").Logger(),
	}
	var conn *Wifi
	if connector != nil {
		conn = w
	}
	// no connector: the task is disabled and never runs
	w.task = sched.NewDescribedTask[wifiAutoConnectTask](b, "wifi", conn)
	return w
}

// Begin kicks off the connection attempt. Safe to call repeatedly; only the
// first call does anything.
func (w *Wifi) Begin() {
	if w.attempted.Load() {
		return
	}
	w.task.Begin()
}

func (w *Wifi) Attempted() bool { return w.attempted.Load() }
func (w *Wifi) OK() bool        { return w.ok.Load() }

func (w *Wifi) Task() *sched.Task { return w.task }

func (w *Wifi) autoConnect() {
	w.attempted.Store(true)

	apName := fmt.Sprintf("%s-Setup", w.name)
	ok := w.connector.AutoConnect(apName)
	w.ok.Store(ok)

	if !ok {
		w.log.Warn().Str("portal", apName).Msg("not connected (portal timed out or connect failed)")
		return
	}
	w.log.Info().Msg("connected")
	if w.onConnect != nil {
		w.onConnect()
	}
}
