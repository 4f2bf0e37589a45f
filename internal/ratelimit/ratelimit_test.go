package ratelimit

import (
	"sync"
	"testing"
	"time"

	"snapflow/internal/logging"
)

func TestFirstPublishAlwaysAllowed(t *testing.T) {
	l := New(time.Hour, ScopeUser, logging.NewNop())
	ok, wait := l.CanPublishNow("alice")
	if !ok || wait != 0 {
		t.Fatalf("first publish blocked: ok=%v wait=%s", ok, wait)
	}
}

func TestMinDelayEnforced(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l := New(time.Hour, ScopeUser, logging.NewNop(), WithNow(func() time.Time { return current }))

	l.RecordPublish("alice", base)

	current = base.Add(30 * time.Minute)
	ok, wait := l.CanPublishNow("alice")
	if ok {
		t.Fatal("publish allowed inside minimum delay")
	}
	if wait != 30*time.Minute {
		t.Fatalf("wait = %s, want 30m", wait)
	}

	current = base.Add(time.Hour)
	if ok, _ := l.CanPublishNow("alice"); !ok {
		t.Fatal("publish still blocked after delay elapsed")
	}
}

func TestUserScopesIndependent(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(time.Hour, ScopeUser, logging.NewNop(), WithNow(func() time.Time { return base.Add(time.Minute) }))

	l.RecordPublish(l.ScopeFor("alice"), base)

	if ok, _ := l.CanPublishNow(l.ScopeFor("alice")); ok {
		t.Fatal("alice should be gated")
	}
	if ok, _ := l.CanPublishNow(l.ScopeFor("bob")); !ok {
		t.Fatal("bob must not be gated by alice's publish")
	}
}

func TestGlobalScopeSharesOneLedger(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := New(time.Hour, ScopeGlobal, logging.NewNop(), WithNow(func() time.Time { return base.Add(time.Minute) }))

	l.RecordPublish(l.ScopeFor("alice"), base)

	if ok, _ := l.CanPublishNow(l.ScopeFor("bob")); ok {
		t.Fatal("global scope must gate all users together")
	}
}

func TestConcurrentSameScope(t *testing.T) {
	l := New(time.Hour, ScopeUser, logging.NewNop())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.CanPublishNow("alice"); ok {
				mu.Lock()
				if allowed == 0 {
					// Simulate the winner confirming its publish.
					l.RecordPublish("alice", time.Now())
				}
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// After one confirmed publish the gate must be closed.
	if ok, _ := l.CanPublishNow("alice"); ok {
		t.Fatal("gate open immediately after a recorded publish")
	}
}
