//go:build linux

package sched

import (
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// applyNative pins the calling OS thread to core and lowers its priority.
// The caller must have locked the goroutine to its thread. Failures leave the
// thread as it was.
func applyNative(log zerolog.Logger, prio Priority, core CoreID) {
	if core != CoreAny {
		var set unix.CPUSet
		set.Zero()
		set.Set(int(core))
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			log.Debug().Err(err).Int("core", int(core)).Msg("core affinity not applied")
		}
	}
	if nice := niceFor(prio); nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
			log.Debug().Err(err).Int("nice", nice).Msg("thread priority not applied")
		}
	}
}
