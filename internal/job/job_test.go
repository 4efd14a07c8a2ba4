package job

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sbjtask/internal/sched"
)

type fakeLux struct {
	ok    bool
	value float64
	reads int
}

func (f *fakeLux) Begin() bool      { return f.ok }
func (f *fakeLux) ReadLux() float64 { f.reads++; return f.value }

type fakeConnector struct {
	ok     bool
	calls  int
	apName string
}

func (f *fakeConnector) AutoConnect(apName string) bool {
	f.calls++
	f.apName = apName
	return f.ok
}

func pump(b *sched.Cooperative, clock *sched.ManualClock, step, end uint64) {
	for {
		b.Pump()
		if clock.Millis()+step > end {
			return
		}
		clock.Advance(step)
	}
}

// TestLighting_SamplesEverySecond verifies the descriptor-bound lighting task
// Given: A lighting subsystem whose sensor fails to begin
// When: The cooperative pump runs for 3.5 seconds
// Then: Sampling still runs, once per second starting at t=0
func TestLighting_SamplesEverySecond(t *testing.T) {
	clock := &sched.ManualClock{}
	b := sched.NewCooperative(sched.WithClock(clock))
	sensor := &fakeLux{ok: false, value: 42.5}

	l := NewLighting(b, sensor, zerolog.Nop())
	l.Begin()
	pump(b, clock, 100, 3500)

	if sensor.reads != 4 {
		t.Errorf("reads = %d, want 4", sensor.reads)
	}
	if l.Lux() != 42.5 {
		t.Errorf("Lux() = %v, want 42.5", l.Lux())
	}
	if s := l.Task().Schedule(); s.IntervalMs != 1000 || !s.Unbounded() {
		t.Errorf("schedule = %+v, want 1000ms forever", s)
	}
}

func TestWifi_OneShot(t *testing.T) {
	clock := &sched.ManualClock{}
	b := sched.NewCooperative(sched.WithClock(clock))
	conn := &fakeConnector{ok: true}
	var synced atomic.Int32

	w := NewWifi(b, "Jove", conn, func() { synced.Add(1) }, zerolog.Nop())
	w.Begin()
	w.Begin()
	pump(b, clock, 10, 200)
	w.Begin()
	pump(b, clock, 10, 400)

	if conn.calls != 1 || conn.apName != "Jove-Setup" {
		t.Errorf("AutoConnect calls=%d ap=%q, want 1 Jove-Setup", conn.calls, conn.apName)
	}
	if !w.Attempted() || !w.OK() || synced.Load() != 1 {
		t.Errorf("attempted=%v ok=%v synced=%d, want true true 1", w.Attempted(), w.OK(), synced.Load())
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after the one-shot retires", b.Len())
	}
}

func TestWifi_NoConnectorIsDisabled(t *testing.T) {
	clock := &sched.ManualClock{}
	b := sched.NewCooperative(sched.WithClock(clock))

	w := NewWifi(b, "", nil, nil, zerolog.Nop())
	w.Begin()
	pump(b, clock, 10, 100)

	if w.Attempted() || w.OK() {
		t.Error("disabled wifi should never attempt")
	}
	if !w.Task().Begun() {
		t.Error("Task().Begun() = false, want true")
	}
}

func TestWifi_ConnectFailure(t *testing.T) {
	p := sched.NewPreemptive(t.Context(), sched.DefaultConfig())
	conn := &fakeConnector{ok: false}

	w := NewWifi(p, "SBJ", conn, nil, zerolog.Nop())
	w.Begin()

	deadline := time.Now().Add(2 * time.Second)
	for p.Running() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("wifi task did not finish")
		}
		time.Sleep(time.Millisecond)
	}

	if !w.Attempted() {
		t.Error("Attempted() = false, want true")
	}
	if w.OK() {
		t.Error("OK() = true after a failed connect")
	}
}

func TestBLEPoller(t *testing.T) {
	clock := &sched.ManualClock{}
	b := sched.NewCooperative(sched.WithClock(clock))
	polls := 0

	task := NewBLEPoller(b, func() { polls++ }, BLESchedule())
	task.Begin()
	pump(b, clock, 50, 1000)

	if polls != 11 {
		t.Errorf("polls = %d, want 11", polls)
	}
}

func TestClassify(t *testing.T) {
	cases := map[int]Docked{0: DockedNone, 4: DockedNone, 5: DockedPassive, 19: DockedPassive, 20: DockedCharging, 900: DockedCharging}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Errorf("Classify(%d) = %v, want %v", in, got, want)
		}
	}
}

// TestDockSensor_ReportsChanges verifies the method-bound dock sensor
// Given: A reading sequence none, passive, passive, charging
// When: The sensor is pumped four times at its interval
// Then: Only the two changes are reported
func TestDockSensor_ReportsChanges(t *testing.T) {
	clock := &sched.ManualClock{}
	b := sched.NewCooperative(sched.WithClock(clock))

	readings := []int{1, 10, 12, 50}
	i := 0
	var changes []Docked
	d := NewDockSensor(b, func() int {
		v := readings[i]
		i++
		return v
	}, func(s Docked) { changes = append(changes, s) }, DockSchedule())
	d.Begin()

	pump(b, clock, DefaultDockMs, 3*DefaultDockMs)

	if len(changes) != 2 || changes[0] != DockedPassive || changes[1] != DockedCharging {
		t.Errorf("changes = %v, want [passive charging]", changes)
	}
	if d.Detected() != DockedCharging {
		t.Errorf("Detected() = %v, want charging", d.Detected())
	}
}
