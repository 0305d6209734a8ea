package infra

import (
	"testing"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
)

func TestBucketStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewBucketStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter for same key")
	}
	if s.Len() != 1 {
		t.Fatalf("expected one entry, got %d", s.Len())
	}
}

func TestBucketStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewBucketStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	clock := newFakeClock()
	s := NewBucketStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithBucketClock(clock.Now))

	before := s.Get(domain.Key("idle"))
	clock.Advance(30 * time.Second)
	s.Get(domain.Key("active"))
	clock.Advance(45 * time.Second)

	s.Cleanup()

	if s.Len() != 1 {
		t.Fatalf("expected only the active key to survive, got %d", s.Len())
	}
	if after := s.Get(domain.Key("idle")); before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
