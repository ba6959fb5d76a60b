package model

import (
	"time"
)

// IssueSeverity classifies how serious a single finding is
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// Rank returns the ordering weight of a severity (higher is worse)
func (s IssueSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// IssueType identifies which check produced a finding
type IssueType string

const (
	IssueDNS         IssueType = "dns"
	IssueHTTP        IssueType = "http"
	IssueSSL         IssueType = "ssl"
	IssuePerformance IssueType = "performance"
	IssueContent     IssueType = "content"
	IssueSystem      IssueType = "system"
)

// Issue is a single structured finding attached to a domain evaluation
type Issue struct {
	Type     IssueType     `json:"type" bson:"type"`
	Severity IssueSeverity `json:"severity" bson:"severity"`
	Message  string        `json:"message" bson:"message"`
}

// HealthStatus is the overall health classification of one domain
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
	StatusUnknown  HealthStatus = "unknown"
)

// PerformanceMetrics holds timing breakdowns for one evaluation.
// Metrics for checks that did not run stay zero so aggregation
// arithmetic never has to deal with nulls.
type PerformanceMetrics struct {
	ResponseTimeMs     int64 `json:"response_time_ms" bson:"response_time_ms"`
	FirstByteTimeMs    int64 `json:"first_byte_time_ms" bson:"first_byte_time_ms"`
	DomainLookupTimeMs int64 `json:"domain_lookup_time_ms" bson:"domain_lookup_time_ms"`
	DownloadTimeMs     int64 `json:"download_time_ms" bson:"download_time_ms"`
	TotalTimeMs        int64 `json:"total_time_ms" bson:"total_time_ms"`
}

// DomainHealthResult is the outcome of evaluating one domain within a run.
// It is derived once by the evaluator and never mutated afterwards.
type DomainHealthResult struct {
	Domain         string             `json:"domain" bson:"domain"`
	Status         HealthStatus       `json:"status" bson:"status"`
	ResponseTimeMs int64              `json:"response_time_ms" bson:"response_time_ms"`
	HTTPStatus     int                `json:"http_status,omitempty" bson:"http_status,omitempty"`
	SSLValid       bool               `json:"ssl_valid" bson:"ssl_valid"`
	SSLExpiry      *time.Time         `json:"ssl_expiry,omitempty" bson:"ssl_expiry,omitempty"`
	DNSResolved    bool               `json:"dns_resolved" bson:"dns_resolved"`
	SecurityScore  int                `json:"security_score" bson:"security_score"`
	Metrics        PerformanceMetrics `json:"performance_metrics" bson:"performance_metrics"`
	Issues         []Issue            `json:"issues" bson:"issues"`
	Timestamp      time.Time          `json:"timestamp" bson:"timestamp"`
}

// MaxSeverity returns the worst severity among the collected issues,
// or empty when there are none.
func (r *DomainHealthResult) MaxSeverity() IssueSeverity {
	var worst IssueSeverity
	for _, issue := range r.Issues {
		if issue.Severity.Rank() > worst.Rank() {
			worst = issue.Severity
		}
	}
	return worst
}

// HasIssue reports whether any issue of the given type was recorded
func (r *DomainHealthResult) HasIssue(t IssueType) bool {
	for _, issue := range r.Issues {
		if issue.Type == t {
			return true
		}
	}
	return false
}
