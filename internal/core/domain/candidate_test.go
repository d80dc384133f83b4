package domain

import (
	"slices"
	"testing"
)

func TestCandidateQueueDrainsInArrivalOrder(t *testing.T) {
	q := NewCandidateQueue()
	for _, c := range []string{"a", "b", "c"} {
		q.Push(IceCandidate{Candidate: c})
	}
	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	drained := q.Drain()
	got := make([]string, 0, len(drained))
	for _, c := range drained {
		got = append(got, c.Candidate)
	}
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("drained = %v, want [a b c]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", q.Len())
	}
	if q.Drain() != nil {
		t.Error("second drain returned candidates")
	}
}

func TestIceCandidateValid(t *testing.T) {
	if (IceCandidate{}).Valid() {
		t.Error("empty candidate reported valid")
	}
	if !(IceCandidate{Candidate: "candidate:1"}).Valid() {
		t.Error("non-empty candidate reported invalid")
	}
}
