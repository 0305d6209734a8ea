package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWindow(t *testing.T, clock *fakeClock, window time.Duration, max int, opts ...SlidingWindowOption) *SlidingWindow {
	t.Helper()
	opts = append([]SlidingWindowOption{WithClock(clock.Now)}, opts...)
	w, err := NewSlidingWindow(window, max, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w
}

func TestSlidingWindow_AllowsUpToMaxThenDenies(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, 1000*time.Millisecond, 5)

	for i := 0; i < 5; i++ {
		if !w.IsAllowed("ip1") {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
		clock.Advance(10 * time.Millisecond)
	}
	if w.IsAllowed("ip1") {
		t.Fatalf("expected sixth request to be denied")
	}
	if got := w.Count("ip1"); got != 5 {
		t.Fatalf("denied request must not be recorded, count=%d", got)
	}
}

func TestSlidingWindow_ExpiredTimestampsAreNotCounted(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 5)

	for i := 0; i < 5; i++ {
		w.IsAllowed("ip1")
	}
	if w.IsAllowed("ip1") {
		t.Fatalf("expected limit reached")
	}

	clock.Advance(time.Second + time.Millisecond)
	if !w.IsAllowed("ip1") {
		t.Fatalf("expected request allowed after the window passed")
	}
}

func TestSlidingWindow_BoundaryTimestampIsExpired(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 1)

	w.IsAllowed("ip1")
	clock.Advance(time.Second)
	// instante == windowStart já não conta
	if !w.IsAllowed("ip1") {
		t.Fatalf("expected timestamp exactly at window start to be dropped")
	}
}

func TestSlidingWindow_NoBoundaryBurst(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 2)

	clock.Advance(900 * time.Millisecond)
	w.IsAllowed("ip1")
	w.IsAllowed("ip1")

	// um contador de janela fixa resetaria aqui
	clock.Advance(200 * time.Millisecond)
	if w.IsAllowed("ip1") {
		t.Fatalf("expected deny: 2 requests within the trailing second")
	}
}

func TestSlidingWindow_IdentifiersAreIsolated(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 2)

	w.IsAllowed("ip1")
	w.IsAllowed("ip1")
	if w.IsAllowed("ip1") {
		t.Fatalf("expected ip1 exhausted")
	}
	if !w.IsAllowed("ip2") {
		t.Fatalf("expected ip2 unaffected by ip1")
	}
}

func TestSlidingWindow_ResetClearsState(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Minute, 3)

	for i := 0; i < 3; i++ {
		w.IsAllowed("user-42")
	}
	if w.IsAllowed("user-42") {
		t.Fatalf("expected limit reached")
	}

	w.Reset("user-42")
	if !w.IsAllowed("user-42") {
		t.Fatalf("expected request allowed after reset")
	}
}

func TestSlidingWindow_TakeReportsRemainingAndRetryAfter(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, 10*time.Second, 2)
	ctx := context.Background()

	dec, err := w.Take(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed || dec.Limit != 2 || dec.Remaining != 1 {
		t.Fatalf("unexpected first decision %+v", dec)
	}

	clock.Advance(3 * time.Second)
	dec, _ = w.Take(ctx, "k")
	if !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("unexpected second decision %+v", dec)
	}

	clock.Advance(1 * time.Second)
	dec, _ = w.Take(ctx, "k")
	if dec.Allowed {
		t.Fatalf("expected deny")
	}
	// o mais antigo (t=0) sai da janela em t=10s; agora é t=4s
	if dec.RetryAfter != 6*time.Second {
		t.Fatalf("expected RetryAfter=6s, got %s", dec.RetryAfter)
	}
}

func TestSlidingWindow_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewSlidingWindow(time.Second, 0); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for maxRequests=0, got %v", err)
	}
	if _, err := NewSlidingWindow(0, 5); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for window=0, got %v", err)
	}
	if _, err := NewSlidingWindowFromPolicy(domain.Policy{Name: "login", Window: time.Minute, MaxRequests: -1}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig from policy, got %v", err)
	}
}

func TestSlidingWindow_CleanupRemovesExpiredIdentifiers(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 5, WithSweepEvery(0))

	w.IsAllowed("old")
	clock.Advance(600 * time.Millisecond)
	w.IsAllowed("recent")
	clock.Advance(600 * time.Millisecond)

	w.Cleanup()

	if w.Len() != 1 {
		t.Fatalf("expected only the recent identifier to remain, got %d", w.Len())
	}
	if w.Count("recent") != 1 {
		t.Fatalf("expected recent identifier to keep its timestamp")
	}
}

func TestSlidingWindow_InlineSweepBoundsChurn(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Second, 1, WithSweepEvery(10))

	// identificadores rotativos, cada um visto uma vez
	for i := 0; i < 9; i++ {
		w.IsAllowed(string(rune('a' + i)))
	}
	clock.Advance(2 * time.Second)
	w.IsAllowed("z")

	if w.Len() != 1 {
		t.Fatalf("expected sweep to drop expired identifiers, got %d", w.Len())
	}
}

func TestSlidingWindow_StartJanitorStopsWithContext(t *testing.T) {
	w, err := NewSlidingWindow(time.Millisecond, 1, WithWindowCleanupEvery(2*time.Millisecond), WithSweepEvery(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.IsAllowed("k")
	w.StartJanitor(ctx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for w.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to clean expired identifier")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSlidingWindow_AsWindowLimiterResets(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, clock, time.Minute, 1)
	lim := w.AsWindowLimiter()
	ctx := context.Background()

	if dec, _ := lim.Take(ctx, "k"); !dec.Allowed {
		t.Fatalf("expected first take allowed")
	}
	if dec, _ := lim.Take(ctx, "k"); dec.Allowed {
		t.Fatalf("expected second take denied")
	}
	if err := lim.Reset(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec, _ := lim.Take(ctx, "k"); !dec.Allowed {
		t.Fatalf("expected take allowed after reset")
	}
}

func TestSlidingWindow_ConcurrentCallersNeverExceedMax(t *testing.T) {
	w, err := NewSlidingWindow(time.Hour, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.IsAllowed("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 allowed, got %d", allowed)
	}
}
