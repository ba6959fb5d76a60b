package notify

import (
	"math"
	"time"
)

// RetryConfig controls webhook delivery retries
type RetryConfig struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
}

// SetDefaults fills zero-valued fields with defaults
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// RetryStrategy handles exponential backoff retry logic
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy creates a new retry strategy
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{config: config}
}

// CalculateDelay calculates the delay for a given attempt using exponential backoff
// Formula: delay = min(initial_delay * (multiplier ^ attempt), max_delay)
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delayMs := float64(rs.config.InitialDelayMs) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	if delayMs > float64(rs.config.MaxDelayMs) {
		delayMs = float64(rs.config.MaxDelayMs)
	}

	return time.Duration(delayMs) * time.Millisecond
}

// ShouldRetry determines if a retry should be attempted based on the error type
func (rs *RetryStrategy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}

	// Network errors are retryable
	if err != nil {
		return true
	}

	// Server errors and rate limiting are retryable
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	if statusCode == 429 {
		return true
	}

	// Other client errors are not
	if statusCode >= 400 && statusCode < 500 {
		return false
	}

	return statusCode >= 300
}

// GetMaxAttempts returns the maximum number of attempts
func (rs *RetryStrategy) GetMaxAttempts() int {
	return rs.config.MaxAttempts
}
