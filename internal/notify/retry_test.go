package notify

import (
	"errors"
	"testing"
	"time"
)

func TestRetryConfig_SetDefaults(t *testing.T) {
	var rc RetryConfig
	rc.SetDefaults()

	if rc.MaxAttempts != 3 {
		t.Fatalf("want 3 attempts, got %d", rc.MaxAttempts)
	}
	if rc.InitialDelayMs != 1000 || rc.MaxDelayMs != 30000 {
		t.Fatalf("unexpected delay defaults: %+v", rc)
	}
	if rc.Multiplier != 2.0 {
		t.Fatalf("want multiplier 2.0, got %v", rc.Multiplier)
	}
}

func TestRetryStrategy_CalculateDelay(t *testing.T) {
	rs := NewRetryStrategy(RetryConfig{
		MaxAttempts:    5,
		InitialDelayMs: 100,
		MaxDelayMs:     400,
		Multiplier:     2.0,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 400 * time.Millisecond}, // capped
	}

	for _, tt := range tests {
		if got := rs.CalculateDelay(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: want %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	rs := NewRetryStrategy(RetryConfig{MaxAttempts: 3})

	if !rs.ShouldRetry(1, 0, errors.New("connection refused")) {
		t.Fatalf("transport errors should be retryable")
	}
	if !rs.ShouldRetry(1, 500, nil) {
		t.Fatalf("server errors should be retryable")
	}
	if !rs.ShouldRetry(1, 429, nil) {
		t.Fatalf("rate limiting should be retryable")
	}
	if rs.ShouldRetry(1, 404, nil) {
		t.Fatalf("client errors should not be retryable")
	}
	if rs.ShouldRetry(1, 200, nil) {
		t.Fatalf("success should not be retryable")
	}
	if rs.ShouldRetry(3, 500, nil) {
		t.Fatalf("attempts at the cap should not retry")
	}
}
