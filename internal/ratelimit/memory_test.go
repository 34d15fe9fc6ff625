package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterDeniesAfterBurst(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "rl:lookup:198.51.100.7", 1, 5)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	result, err := limiter.Allow(ctx, "rl:lookup:198.51.100.7", 1, 5)
	if err != nil {
		t.Fatalf("allow after burst: %v", err)
	}
	if result.Allowed {
		t.Fatal("request past burst should be denied")
	}
	if result.RetryAfter <= 0 {
		t.Fatal("denied result should carry a retry-after hint")
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if result, _ := limiter.Allow(ctx, "rl:lookup:192.0.2.1", 1, 3); !result.Allowed {
			t.Fatalf("first key request %d denied", i)
		}
	}
	if result, _ := limiter.Allow(ctx, "rl:lookup:192.0.2.1", 1, 3); result.Allowed {
		t.Fatal("first key should be exhausted")
	}
	if result, _ := limiter.Allow(ctx, "rl:lookup:192.0.2.2", 1, 3); !result.Allowed {
		t.Fatal("second key should be unaffected")
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limiter.Allow(ctx, "rl:pay:203.0.113.5", 2, 2)
	}
	if result, _ := limiter.Allow(ctx, "rl:pay:203.0.113.5", 2, 2); result.Allowed {
		t.Fatal("bucket should be empty")
	}

	now = now.Add(2 * time.Second)
	if result, _ := limiter.Allow(ctx, "rl:pay:203.0.113.5", 2, 2); !result.Allowed {
		t.Fatal("new window should allow again")
	}
}
