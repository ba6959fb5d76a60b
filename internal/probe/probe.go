// Package probe implements the single-domain network checks (DNS, HTTP,
// TLS, content rules) that the health evaluator composes into a
// DomainHealthResult.
//
// Probes fail soft: every network error is converted into a structured
// issue on the probe result, never returned as an error, so callers do
// not need failure handling around an individual check.
package probe

import (
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// DNSResult is the outcome of a DNS resolution probe
type DNSResult struct {
	Resolved     bool
	Addresses    []string
	LookupTimeMs int64
	Issues       []model.Issue
}

// HTTPResult is the outcome of an HTTPS request probe
type HTTPResult struct {
	StatusCode      int
	ResponseTimeMs  int64
	FirstByteTimeMs int64
	DownloadTimeMs  int64
	Body            string
	Issues          []model.Issue
}

// TLSResult is the outcome of a TLS certificate inspection probe
type TLSResult struct {
	Valid  bool
	Expiry *time.Time
	Issues []model.Issue
}

const (
	// Certificates expiring inside these windows raise warnings of
	// increasing severity.
	expiryWarnWindow = 30 * 24 * time.Hour
	expiryHighWindow = 7 * 24 * time.Hour

	// Response bodies are capped to keep content-rule evaluation bounded.
	maxBodyBytes = 1024 * 1024
)
