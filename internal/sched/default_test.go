package sched

import "testing"

func TestNewDefault_MatchesBuildSelection(t *testing.T) {
	b := NewDefault(t.Context(), DefaultConfig(), WithClock(&ManualClock{}))
	if b.Kind() != DefaultKind {
		t.Errorf("NewDefault().Kind() = %v, want %v", b.Kind(), DefaultKind)
	}
}

func TestKind_String(t *testing.T) {
	if KindPreemptive.String() != "preemptive" || KindCooperative.String() != "cooperative" || Kind(7).String() != "unknown" {
		t.Error("unexpected kind names")
	}
}
