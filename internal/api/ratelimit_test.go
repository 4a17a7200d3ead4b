package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/shaiso/Delegate/internal/rpc"
)

func TestNewTargetLimiter_Disabled(t *testing.T) {
	if l := NewTargetLimiter(0, 10); l != nil {
		t.Fatal("expected nil limiter for zero rps")
	}

	var l *TargetLimiter
	for i := 0; i < 100; i++ {
		if !l.Allow("add", time.Now()) {
			t.Fatal("nil limiter must allow everything")
		}
	}
}

func TestTargetLimiter_PerTarget(t *testing.T) {
	l := NewTargetLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !l.Allow("add", now) || !l.Allow("add", now) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("add", now) {
		t.Error("third call in the same instant should be limited")
	}
	if !l.Allow("echo", now) {
		t.Error("other targets have their own bucket")
	}
	if !l.Allow("add", now.Add(time.Second)) {
		t.Error("bucket should refill after a second")
	}
}

func TestTargetLimiter_EvictsIdleTargets(t *testing.T) {
	l := NewTargetLimiter(1, 1)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Allow("stale", start)
	later := start.Add(time.Hour)
	for i := 0; i < 512; i++ {
		l.Allow("hot", later)
	}

	l.mu.Lock()
	_, ok := l.byTarget["stale"]
	l.mu.Unlock()
	if ok {
		t.Error("idle target should be evicted")
	}
}

func TestInvoke_RateLimited(t *testing.T) {
	inv := &fakeInvoker{reply: rpc.Reply(`1`)}
	srv := newServer(t, Config{Invoker: inv, Limiter: NewTargetLimiter(0.001, 1)})

	resp, _ := post(t, srv.URL+"/api/v1/invoke/add", `[1]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first call: expected 200, got %d", resp.StatusCode)
	}

	resp, body := post(t, srv.URL+"/api/v1/invoke/add", `[1]`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second call: expected 429, got %d", resp.StatusCode)
	}
	if errorCode(body) != string(ErrCodeRateLimited) {
		t.Errorf("expected RATE_LIMITED, got %v", body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	resp, _ = post(t, srv.URL+"/api/v1/invoke/multiply", `[1]`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("other target: expected 200, got %d", resp.StatusCode)
	}
}
