//go:build !sbjtask_cooperative

package sched

import "context"

// DefaultKind is the backend compiled into this program. Build with
// -tags sbjtask_cooperative to select the cooperative backend.
const DefaultKind = KindPreemptive

// NewDefault creates the backend selected at build time.
func NewDefault(ctx context.Context, cfg Config, opts ...Option) Backend {
	return NewPreemptive(ctx, cfg, opts...)
}
