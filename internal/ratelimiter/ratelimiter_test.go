package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "low rate", requestsPerSecond: 1, burst: 2},
		{name: "zero burst defaults to rate", requestsPerSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
		})
	}
}

func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 10000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
	}
}

func TestWaitCancelled(t *testing.T) {
	limiter := New(1, 1)
	limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait() should fail on a cancelled context")
	}
}

func TestClientLimiterIsolatesClients(t *testing.T) {
	limiter := NewClientLimiter(1, 1, time.Minute)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request from client A should be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second request from client A should be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("client B must not be affected by client A")
	}
	if limiter.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", limiter.Len())
	}
}

func TestClientLimiterPrune(t *testing.T) {
	limiter := NewClientLimiter(5, 5, time.Minute)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(2 * time.Minute)
	limiter.Allow("fresh")

	if removed := limiter.Prune(); removed != 1 {
		t.Fatalf("expected 1 pruned client, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Fatalf("expected 1 remaining client, got %d", limiter.Len())
	}
}

func TestClientLimiterDisabled(t *testing.T) {
	limiter := NewClientLimiter(0, 0, 0)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("any") {
			t.Fatal("disabled limiter must allow everything")
		}
	}
	if limiter.Len() != 0 {
		t.Fatal("disabled limiter must not track clients")
	}
}
