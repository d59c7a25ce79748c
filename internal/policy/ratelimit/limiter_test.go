package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	// 10 requests per second = 100ms interval, burst 1.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://test.com/a"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://TEST.com/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
	if l.Hosts() != 1 {
		t.Errorf("expected one bucket for a case-insensitive host, got %d", l.Hosts())
	}
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example.com"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://b.example.com"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur > 50*time.Millisecond {
		t.Errorf("different hosts must not share a bucket, waited %v", dur)
	}
}

func TestLimiterRespectsContext(t *testing.T) {
	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	if err := l.Wait(context.Background(), "https://slow.example.com"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "https://slow.example.com"); err == nil {
		t.Fatal("expected wait to fail once the context expires")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation error: %v", err)
	}
}

func TestLimiterDisabledAndNil(t *testing.T) {
	l := New(Config{})
	for range 5 {
		if err := l.Wait(context.Background(), "https://example.com"); err != nil {
			t.Fatal(err)
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}
}

func TestLimiterSharesBucketPerHost(t *testing.T) {
	l := New(Config{})
	for _, raw := range []string{"https://Example.com/a", "example.com/b", "http://example.com:8080/c"} {
		if err := l.Wait(context.Background(), raw); err != nil {
			t.Fatal(err)
		}
	}
	if got := l.Hosts(); got != 1 {
		t.Fatalf("expected one host bucket, got %d", got)
	}
}
