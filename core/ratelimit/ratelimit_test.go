package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPerKeyBurst(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	if !l.allowAt("a", now) || !l.allowAt("a", now) {
		t.Fatalf("burst of 2 should admit two immediate requests")
	}
	if l.allowAt("a", now) {
		t.Fatalf("third immediate request should be rejected")
	}
	if !l.allowAt("b", now) {
		t.Fatalf("another key must have its own bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()

	if !l.allowAt("a", now) {
		t.Fatalf("first request should pass")
	}
	if l.allowAt("a", now) {
		t.Fatalf("bucket should be empty")
	}
	if !l.allowAt("a", now.Add(time.Second)) {
		t.Fatalf("bucket should refill after one second at 1 rps")
	}
}

func TestNilAndEmptyKeyAlwaysPass(t *testing.T) {
	var l *KeyLimiter
	if !l.Allow("a") {
		t.Fatalf("nil limiter must admit everything")
	}

	l = New(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.allowAt("", now) {
			t.Fatalf("empty key must never be limited")
		}
	}
}

func TestDisabledOnBadArgs(t *testing.T) {
	if New(0, 5, time.Minute) != nil {
		t.Fatalf("rps <= 0 should disable the limiter")
	}
	if New(2, 0, time.Minute) != nil {
		t.Fatalf("burst <= 0 should disable the limiter")
	}
}

func TestSweepEvictsIdleBuckets(t *testing.T) {
	l := New(100, 1, time.Minute)
	now := time.Now()

	l.allowAt("idle", now)
	l.sweepLocked(now.Add(2 * time.Minute))

	if _, ok := l.buckets["idle"]; ok {
		t.Fatalf("idle bucket should have been evicted")
	}
}
