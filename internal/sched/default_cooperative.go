//go:build sbjtask_cooperative

package sched

import "context"

// DefaultKind is the backend compiled into this program.
const DefaultKind = KindCooperative

// NewDefault creates the backend selected at build time. ctx and cfg are
// unused: the cooperative backend only runs when pumped.
func NewDefault(ctx context.Context, cfg Config, opts ...Option) Backend {
	return NewCooperative(opts...)
}
