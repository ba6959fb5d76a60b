// Package evaluator derives a single DomainHealthResult for one domain
// by running the probes enabled in the batch configuration and
// classifying the collected issues.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/probe"
)

// Narrow probe views so tests can substitute fakes
type dnsProber interface {
	Check(ctx context.Context, domain string) probe.DNSResult
}

type httpProber interface {
	Check(ctx context.Context, domain string) probe.HTTPResult
}

type tlsProber interface {
	Check(ctx context.Context, domain string) probe.TLSResult
}

// Evaluator runs the enabled probes for domains of one batch run.
// Probes are constructed once per run from the immutable run
// configuration and shared across domains.
type Evaluator struct {
	types model.CheckTypes
	cfg   model.CheckConfig

	dns  dnsProber
	http httpProber
	tls  tlsProber
}

// New creates an evaluator for one batch run
func New(types model.CheckTypes, cfg model.CheckConfig) *Evaluator {
	return &Evaluator{
		types: types,
		cfg:   cfg,
		dns:   probe.NewDNSProbe(cfg),
		http:  probe.NewHTTPProbe(cfg),
		tls:   probe.NewTLSProbe(cfg),
	}
}

// needsHTTP reports whether any enabled check requires the HTTP probe
func (e *Evaluator) needsHTTP() bool {
	return e.types.Uptime || e.types.HTTPStatus || e.types.ResponseTime || e.types.Content
}

// Evaluate runs all enabled probes against one domain and derives the
// overall status. It never returns an error and never panics outward:
// any failure inside a probe is degraded to a critical system issue so
// a single domain cannot abort the batch.
func (e *Evaluator) Evaluate(ctx context.Context, domain string) (result model.DomainHealthResult) {
	result = model.DomainHealthResult{
		Domain:    domain,
		Status:    model.StatusUnknown,
		Timestamp: time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Probe panic recovered",
				"domain", domain,
				"panic", r,
			)
			result.Issues = append(result.Issues, model.Issue{
				Type:     model.IssueSystem,
				Severity: model.SeverityCritical,
				Message:  fmt.Sprintf("internal evaluation failure: %v", r),
			})
			result.Status = model.StatusCritical
		}
	}()

	probesRan := 0

	if e.types.DNS {
		dnsResult := e.dns.Check(ctx, domain)
		probesRan++
		result.DNSResolved = dnsResult.Resolved
		result.Metrics.DomainLookupTimeMs = dnsResult.LookupTimeMs
		result.Issues = append(result.Issues, dnsResult.Issues...)
	}

	if e.needsHTTP() {
		httpResult := e.http.Check(ctx, domain)
		probesRan++
		result.HTTPStatus = httpResult.StatusCode
		result.ResponseTimeMs = httpResult.ResponseTimeMs
		result.Metrics.ResponseTimeMs = httpResult.ResponseTimeMs
		result.Metrics.FirstByteTimeMs = httpResult.FirstByteTimeMs
		result.Metrics.DownloadTimeMs = httpResult.DownloadTimeMs
		result.Issues = append(result.Issues, httpResult.Issues...)

		if e.types.ResponseTime && e.cfg.Thresholds.ResponseTimeMs > 0 &&
			httpResult.ResponseTimeMs > e.cfg.Thresholds.ResponseTimeMs {
			result.Issues = append(result.Issues, model.Issue{
				Type:     model.IssuePerformance,
				Severity: model.SeverityMedium,
				Message: fmt.Sprintf("response time %dms exceeds threshold %dms",
					httpResult.ResponseTimeMs, e.cfg.Thresholds.ResponseTimeMs),
			})
		}

		if e.types.Content {
			result.Issues = append(result.Issues,
				probe.EvaluateContentRules(e.cfg.ContentRules, httpResult.Body)...)
		}
	}

	if e.types.SSL {
		tlsResult := e.tls.Check(ctx, domain)
		probesRan++
		result.SSLValid = tlsResult.Valid
		result.SSLExpiry = tlsResult.Expiry
		result.Issues = append(result.Issues, tlsResult.Issues...)
	}

	result.Metrics.TotalTimeMs = result.Metrics.DomainLookupTimeMs + result.Metrics.ResponseTimeMs
	result.Status = classify(result.Issues, probesRan)
	result.SecurityScore = securityScore(result.Issues)

	return result
}

// classify derives the overall status by severity precedence:
// any critical issue wins, then high degrades to warning, an empty
// issue list with at least one probe run is healthy, and everything
// else (no signal, or only medium/low findings) is unknown.
func classify(issues []model.Issue, probesRan int) model.HealthStatus {
	hasCritical := false
	hasHigh := false
	for _, issue := range issues {
		switch issue.Severity {
		case model.SeverityCritical:
			hasCritical = true
		case model.SeverityHigh:
			hasHigh = true
		}
	}

	switch {
	case hasCritical:
		return model.StatusCritical
	case hasHigh:
		return model.StatusWarning
	case len(issues) == 0 && probesRan > 0:
		return model.StatusHealthy
	default:
		return model.StatusUnknown
	}
}

// securityScore maps the issue list onto a 0-100 score
func securityScore(issues []model.Issue) int {
	score := 100
	for _, issue := range issues {
		switch issue.Severity {
		case model.SeverityCritical:
			score -= 40
		case model.SeverityHigh:
			score -= 25
		case model.SeverityMedium:
			score -= 10
		case model.SeverityLow:
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
