//go:build !linux

package sched

import "github.com/rs/zerolog"

func applyNative(log zerolog.Logger, prio Priority, core CoreID) {
	log.Debug().
		Str("priority", prio.String()).
		Int("core", int(core)).
		Msg("native thread placement unsupported on this platform")
}
