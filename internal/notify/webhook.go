package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// WebhookChannel posts JSON alert payloads to arbitrary webhook URLs
// with exponential-backoff retries and a per-endpoint circuit breaker.
type WebhookChannel struct {
	httpClient *http.Client
	retry      RetryConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewWebhookChannel creates a webhook channel with the given delivery timeout
func NewWebhookChannel(timeout time.Duration, retry RetryConfig) *WebhookChannel {
	retry.SetDefaults()
	return &WebhookChannel{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:    retry,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Type implements Channel
func (c *WebhookChannel) Type() model.ChannelType {
	return model.ChannelWebhook
}

// Send delivers the message with retry logic. The circuit breaker for
// the endpoint short-circuits delivery after repeated failures.
func (c *WebhookChannel) Send(ctx context.Context, config model.ChannelConfig, msg Message) error {
	breaker := c.breakerFor(config.Target)

	if !breaker.CanAttempt() {
		return fmt.Errorf("circuit breaker is %s for %s", breaker.GetStateName(), config.Target)
	}

	strategy := NewRetryStrategy(c.retry)

	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= strategy.GetMaxAttempts(); attempt++ {
		lastStatus, lastErr = c.deliver(ctx, config, msg)

		if lastErr == nil && lastStatus >= 200 && lastStatus < 300 {
			breaker.RecordSuccess()
			return nil
		}

		if !strategy.ShouldRetry(attempt, lastStatus, lastErr) {
			break
		}

		if attempt < strategy.GetMaxAttempts() {
			delay := strategy.CalculateDelay(attempt)
			slog.Warn("Webhook delivery failed, retrying",
				"target", config.Target,
				"attempt", attempt,
				"next_retry_ms", delay.Milliseconds(),
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				breaker.RecordFailure()
				return ctx.Err()
			}
		}
	}

	breaker.RecordFailure()
	if lastErr != nil {
		return fmt.Errorf("webhook delivery to %s failed: %w", config.Target, lastErr)
	}
	return fmt.Errorf("webhook delivery to %s failed with status %d", config.Target, lastStatus)
}

// deliver performs a single delivery attempt
func (c *WebhookChannel) deliver(ctx context.Context, config model.ChannelConfig, msg Message) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"title":    msg.Title,
		"text":     msg.Text,
		"domain":   msg.Domain,
		"severity": msg.Severity,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Target, bytes.NewBuffer(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	// Non-2xx statuses are reported through the status code alone so
	// the retry strategy can distinguish them from transport errors.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return resp.StatusCode, nil
}

func (c *WebhookChannel) breakerFor(target string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	breaker, ok := c.breakers[target]
	if !ok {
		breaker = NewCircuitBreaker()
		c.breakers[target] = breaker
	}
	return breaker
}
