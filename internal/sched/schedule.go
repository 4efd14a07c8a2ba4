// internal/sched/schedule.go

package sched

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Forever is the iteration count of a task that runs until the process ends.
const Forever int32 = -1

// CoreAny lets the platform place the task on any core.
const CoreAny CoreID = -1

// CoreID selects the core a preemptive task is pinned to.
type CoreID int

// Priority is the relative scheduling priority of a preemptive task.
type Priority uint8

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// ErrInvalidIterations is returned by Validate when Iterations is neither Forever nor positive.
var ErrInvalidIterations = errors.New("iterations must be Forever or > 0")

// Schedule describes when and how often a task runs.
// StackSize, Priority and Core only matter on the preemptive backend.
type Schedule struct {
	IntervalMs   uint32   `yaml:"interval_ms"`
	Iterations   int32    `yaml:"iterations"`
	StartDelayMs uint32   `yaml:"start_delay_ms"`
	StackSize    uint32   `yaml:"stack_size"`
	Priority     Priority `yaml:"priority"`
	Core         CoreID   `yaml:"core"`
}

// DefaultSchedule runs every millisecond, forever, with no start delay.
func DefaultSchedule() Schedule {
	return Schedule{
		IntervalMs: 1,
		Iterations: Forever,
		StackSize:  4096,
		Priority:   PriorityLow,
		Core:       CoreAny,
	}
}

// Unbounded reports whether the schedule never runs out of iterations.
func (s Schedule) Unbounded() bool { return s.Iterations == Forever }

// Validate checks the iteration invariant.
func (s Schedule) Validate() error {
	if s.Iterations != Forever && s.Iterations <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidIterations, s.Iterations)
	}
	return nil
}

// mustValidate panics on an invalid schedule. Task constructors call it:
// a bad iteration count is a programming error, not a runtime condition.
func (s Schedule) mustValidate() Schedule {
	if err := s.Validate(); err != nil {
		panic("sched: " + err.Error())
	}
	return s
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// UnmarshalYAML accepts low, medium, high or the numeric value.
func (p *Priority) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	raw := scalarString(v)
	switch raw {
	case "", "low", "1":
		*p = PriorityLow
	case "medium", "2":
		*p = PriorityMedium
	case "high", "3":
		*p = PriorityHigh
	default:
		return fmt.Errorf("invalid priority %q", raw)
	}
	return nil
}

// UnmarshalYAML accepts a core number or "any".
func (c *CoreID) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	raw := scalarString(v)
	if raw == "" || raw == "any" {
		*c = CoreAny
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < -1 {
		return fmt.Errorf("invalid core %q", raw)
	}
	*c = CoreID(n)
	return nil
}

// scheduleYAML mirrors Schedule with a loosely typed iteration count.
type scheduleYAML struct {
	IntervalMs   uint32   `yaml:"interval_ms"`
	Iterations   any      `yaml:"iterations"`
	StartDelayMs uint32   `yaml:"start_delay_ms"`
	StackSize    uint32   `yaml:"stack_size"`
	Priority     Priority `yaml:"priority"`
	Core         CoreID   `yaml:"core"`
}

// UnmarshalYAML fills unset fields from DefaultSchedule and accepts
// "forever" for the iteration count.
func (s *Schedule) UnmarshalYAML(unmarshal func(any) error) error {
	def := DefaultSchedule()
	raw := scheduleYAML{
		IntervalMs: def.IntervalMs,
		StackSize:  def.StackSize,
		Priority:   def.Priority,
		Core:       def.Core,
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	it := scalarString(raw.Iterations)
	iterations := Forever
	if it != "" && it != "forever" {
		n, err := strconv.ParseInt(it, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid iterations %v", raw.Iterations)
		}
		iterations = int32(n)
	}

	*s = Schedule{
		IntervalMs:   raw.IntervalMs,
		Iterations:   iterations,
		StartDelayMs: raw.StartDelayMs,
		StackSize:    raw.StackSize,
		Priority:     raw.Priority,
		Core:         raw.Core,
	}
	return s.Validate()
}

// scalarString normalizes a decoded YAML scalar for parsing.
func scalarString(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}
