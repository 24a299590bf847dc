package auth

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func TestLoginGuard_LocksAfterMaxAttempts(t *testing.T) {
	clock := newFakeClock()
	g := NewLoginGuard(LoginGuardConfig{MaxAttempts: 3, Lockout: 10 * time.Minute, Now: clock.Now})

	for i := 1; i <= 2; i++ {
		if locked := g.Fail("alice@example.com"); locked {
			t.Fatalf("Fail() #%d locked too early", i)
		}
	}
	if g.Locked("alice@example.com") {
		t.Fatal("Locked() = true after 2 failures, want false")
	}
	if !g.Fail("alice@example.com") {
		t.Error("third Fail() should report locked")
	}
	if !g.Locked("alice@example.com") {
		t.Error("Locked() = false after 3 failures, want true")
	}
	if g.Locked("bob@example.com") {
		t.Error("other identifiers must not be affected")
	}
}

func TestLoginGuard_UnlocksWhenWindowEnds(t *testing.T) {
	clock := newFakeClock()
	g := NewLoginGuard(LoginGuardConfig{MaxAttempts: 2, Lockout: 10 * time.Minute, Now: clock.Now})

	g.Fail("k")
	clock.Advance(5 * time.Minute)
	g.Fail("k")
	if !g.Locked("k") {
		t.Fatal("expected lock")
	}

	// ウィンドウは最初の失敗から計測される
	clock.Advance(5 * time.Minute)
	if g.Locked("k") {
		t.Error("Locked() = true after window end, want false")
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after lazy eviction", g.Len())
	}
}

func TestLoginGuard_ResetClearsFailures(t *testing.T) {
	g := NewLoginGuard(LoginGuardConfig{MaxAttempts: 2, Lockout: time.Minute})

	g.Fail("k")
	g.Reset("k")
	if g.Fail("k") {
		t.Error("Fail() after Reset should start a new window")
	}
}

func TestLoginGuard_Sweep(t *testing.T) {
	clock := newFakeClock()
	g := NewLoginGuard(LoginGuardConfig{MaxAttempts: 5, Lockout: time.Minute, Now: clock.Now})

	g.Fail("old")
	clock.Advance(30 * time.Second)
	g.Fail("new")
	clock.Advance(31 * time.Second)

	if n := g.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestLoginGuard_Defaults(t *testing.T) {
	g := NewLoginGuard(LoginGuardConfig{})
	for i := 0; i < 4; i++ {
		g.Fail("k")
	}
	if g.Locked("k") {
		t.Error("default MaxAttempts should be 5")
	}
	g.Fail("k")
	if !g.Locked("k") {
		t.Error("expected lock after 5 failures")
	}
}

func TestLoginGuard_ConcurrentFailures(t *testing.T) {
	g := NewLoginGuard(LoginGuardConfig{MaxAttempts: 1000, Lockout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				g.Fail("shared")
			}
		}()
	}
	wg.Wait()

	g.mu.Lock()
	failures := g.windows["shared"].failures
	g.mu.Unlock()
	if failures != 500 {
		t.Errorf("failures = %d, want 500", failures)
	}
}
