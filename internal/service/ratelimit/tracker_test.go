package ratelimit

import (
	"testing"
	"time"
)

func TestTrackerFlagsBurst(t *testing.T) {
	clock := time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)
	tr := New(60 * time.Second)
	tr.now = func() time.Time { return clock }

	if tr.Record() {
		t.Fatalf("first issuance must not be flagged")
	}
	clock = clock.Add(10 * time.Second)
	if !tr.Record() {
		t.Fatalf("issuance within window must be flagged")
	}
	clock = clock.Add(2 * time.Minute)
	if tr.Record() {
		t.Fatalf("issuance outside window must not be flagged")
	}
}
