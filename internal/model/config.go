package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CheckTypes selects which probes run for every domain in a batch
type CheckTypes struct {
	Uptime       bool `json:"uptime" bson:"uptime"`
	SSL          bool `json:"ssl" bson:"ssl"`
	DNS          bool `json:"dns" bson:"dns"`
	ResponseTime bool `json:"response_time" bson:"response_time"`
	HTTPStatus   bool `json:"http_status" bson:"http_status"`
	Content      bool `json:"content" bson:"content"`
}

// Any reports whether at least one check type is enabled
func (ct CheckTypes) Any() bool {
	return ct.Uptime || ct.SSL || ct.DNS || ct.ResponseTime || ct.HTTPStatus || ct.Content
}

// Thresholds holds performance limits evaluated against probe timings
type Thresholds struct {
	ResponseTimeMs int64 `json:"response_time_ms,omitempty" bson:"response_time_ms,omitempty"`
}

// ContentRule is a JSONPath assertion evaluated against the HTTPS response body
type ContentRule struct {
	Name       string      `json:"name" bson:"name"`
	Expression string      `json:"expression" bson:"expression"` // JSONPath expression
	Operator   string      `json:"operator" bson:"operator"`     // eq, ne, contains, exists
	Expected   interface{} `json:"expected,omitempty" bson:"expected,omitempty"`
}

// Validate validates a content rule
func (cr *ContentRule) Validate() error {
	if cr.Name == "" {
		return errors.New("content rule name is required")
	}
	if cr.Expression == "" {
		return errors.New("content rule expression is required")
	}
	validOperators := map[string]bool{
		"eq": true, "ne": true, "contains": true, "exists": true,
	}
	if !validOperators[strings.ToLower(cr.Operator)] {
		return fmt.Errorf("invalid content rule operator: %s", cr.Operator)
	}
	cr.Operator = strings.ToLower(cr.Operator)
	return nil
}

// CheckConfig is the validated, immutable configuration for one batch run.
// It is constructed once at batch start; defaults are applied by SetDefaults.
type CheckConfig struct {
	TimeoutSeconds      int               `json:"timeout_seconds" bson:"timeout_seconds"`
	RetryCount          int               `json:"retry_count" bson:"retry_count"`
	RetryDelayMs        int               `json:"retry_delay_ms" bson:"retry_delay_ms"`
	UserAgent           string            `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Headers             map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	MaxRedirects        int               `json:"max_redirects" bson:"max_redirects"`
	InsecureSkipVerify  bool              `json:"insecure_skip_verify" bson:"insecure_skip_verify"`
	ExpectedStatusCodes []int             `json:"expected_status_codes" bson:"expected_status_codes"`
	Thresholds          Thresholds        `json:"thresholds,omitempty" bson:"thresholds,omitempty"`
	ContentRules        []ContentRule     `json:"content_rules,omitempty" bson:"content_rules,omitempty"`
}

// SetDefaults fills zero-valued fields with sensible defaults
func (c *CheckConfig) SetDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
	if c.RetryDelayMs == 0 {
		c.RetryDelayMs = 1000
	}
	if c.UserAgent == "" {
		c.UserAgent = "domainwatch/1.0"
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = 10
	}
	if len(c.ExpectedStatusCodes) == 0 {
		c.ExpectedStatusCodes = []int{200}
	}
}

// Validate validates the configuration and applies defaults
func (c *CheckConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.TimeoutSeconds > 120 {
		return errors.New("timeout must be 120 seconds or less")
	}
	if c.RetryCount < 0 || c.RetryCount > 10 {
		return errors.New("retry count must be between 0 and 10")
	}
	for _, code := range c.ExpectedStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("invalid expected status code: %d", code)
		}
	}
	for i, rule := range c.ContentRules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("content rule %q validation failed: %w", rule.Name, err)
		}
		c.ContentRules[i] = rule
	}
	c.SetDefaults()
	return nil
}

// Timeout returns the per-probe timeout as a duration
func (c *CheckConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the delay between probe retries
func (c *CheckConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// StatusCodeExpected reports whether the given HTTP status code is accepted
func (c *CheckConfig) StatusCodeExpected(code int) bool {
	for _, expected := range c.ExpectedStatusCodes {
		if code == expected {
			return true
		}
	}
	return false
}
