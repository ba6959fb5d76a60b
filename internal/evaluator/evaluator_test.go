package evaluator

import (
	"context"
	"testing"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/probe"
)

type fakeDNS struct {
	result probe.DNSResult
}

func (f *fakeDNS) Check(ctx context.Context, domain string) probe.DNSResult {
	return f.result
}

type fakeHTTP struct {
	result probe.HTTPResult
	panics bool
}

func (f *fakeHTTP) Check(ctx context.Context, domain string) probe.HTTPResult {
	if f.panics {
		panic("probe exploded")
	}
	return f.result
}

type fakeTLS struct {
	result probe.TLSResult
}

func (f *fakeTLS) Check(ctx context.Context, domain string) probe.TLSResult {
	return f.result
}

func newTestEvaluator(types model.CheckTypes, cfg model.CheckConfig, dns *fakeDNS, http *fakeHTTP, tls *fakeTLS) *Evaluator {
	cfg.SetDefaults()
	return &Evaluator{
		types: types,
		cfg:   cfg,
		dns:   dns,
		http:  http,
		tls:   tls,
	}
}

func TestEvaluate_AllHealthy(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{DNS: true, Uptime: true, SSL: true},
		model.CheckConfig{},
		&fakeDNS{result: probe.DNSResult{Resolved: true, LookupTimeMs: 5}},
		&fakeHTTP{result: probe.HTTPResult{StatusCode: 200, ResponseTimeMs: 120}},
		&fakeTLS{result: probe.TLSResult{Valid: true}},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusHealthy {
		t.Fatalf("want healthy, got %s", result.Status)
	}
	if !result.DNSResolved {
		t.Fatalf("want dns_resolved true")
	}
	if result.HTTPStatus != 200 {
		t.Fatalf("want http status 200, got %d", result.HTTPStatus)
	}
	if !result.SSLValid {
		t.Fatalf("want ssl_valid true")
	}
	if result.SecurityScore != 100 {
		t.Fatalf("want security score 100, got %d", result.SecurityScore)
	}
	if result.Metrics.TotalTimeMs != 125 {
		t.Fatalf("want total time 125ms, got %d", result.Metrics.TotalTimeMs)
	}
}

func TestEvaluate_CriticalIssueWins(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{DNS: true, SSL: true},
		model.CheckConfig{},
		&fakeDNS{result: probe.DNSResult{Issues: []model.Issue{{
			Type: model.IssueDNS, Severity: model.SeverityCritical, Message: "nxdomain",
		}}}},
		&fakeHTTP{},
		&fakeTLS{result: probe.TLSResult{Issues: []model.Issue{{
			Type: model.IssueSSL, Severity: model.SeverityHigh, Message: "expiring",
		}}}},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusCritical {
		t.Fatalf("want critical, got %s", result.Status)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("want 2 issues, got %d", len(result.Issues))
	}
}

func TestEvaluate_HighSeverityIsWarning(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{SSL: true},
		model.CheckConfig{},
		&fakeDNS{}, &fakeHTTP{},
		&fakeTLS{result: probe.TLSResult{Valid: true, Issues: []model.Issue{{
			Type: model.IssueSSL, Severity: model.SeverityHigh, Message: "expires in 3 days",
		}}}},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusWarning {
		t.Fatalf("want warning, got %s", result.Status)
	}
}

func TestEvaluate_MediumOnlyIsUnknown(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{HTTPStatus: true},
		model.CheckConfig{},
		&fakeDNS{},
		&fakeHTTP{result: probe.HTTPResult{StatusCode: 301, Issues: []model.Issue{{
			Type: model.IssueHTTP, Severity: model.SeverityMedium, Message: "unexpected status",
		}}}},
		&fakeTLS{},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusUnknown {
		t.Fatalf("want unknown for medium-only findings, got %s", result.Status)
	}
}

func TestEvaluate_NoProbesIsUnknown(t *testing.T) {
	e := newTestEvaluator(model.CheckTypes{}, model.CheckConfig{}, &fakeDNS{}, &fakeHTTP{}, &fakeTLS{})

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusUnknown {
		t.Fatalf("want unknown when nothing ran, got %s", result.Status)
	}
}

func TestEvaluate_PanicBecomesCriticalSystemIssue(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{Uptime: true},
		model.CheckConfig{},
		&fakeDNS{},
		&fakeHTTP{panics: true},
		&fakeTLS{},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if result.Status != model.StatusCritical {
		t.Fatalf("want critical after panic, got %s", result.Status)
	}
	if !result.HasIssue(model.IssueSystem) {
		t.Fatalf("want a system issue, got %+v", result.Issues)
	}
}

func TestEvaluate_ResponseTimeThreshold(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{ResponseTime: true},
		model.CheckConfig{Thresholds: model.Thresholds{ResponseTimeMs: 100}},
		&fakeDNS{},
		&fakeHTTP{result: probe.HTTPResult{StatusCode: 200, ResponseTimeMs: 350}},
		&fakeTLS{},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if !result.HasIssue(model.IssuePerformance) {
		t.Fatalf("want a performance issue, got %+v", result.Issues)
	}
	if result.Status != model.StatusUnknown {
		t.Fatalf("performance issue is medium, want unknown, got %s", result.Status)
	}
}

func TestEvaluate_ContentRules(t *testing.T) {
	e := newTestEvaluator(
		model.CheckTypes{Content: true},
		model.CheckConfig{ContentRules: []model.ContentRule{
			{Name: "status-ok", Expression: "$.status", Operator: "eq", Expected: "up"},
		}},
		&fakeDNS{},
		&fakeHTTP{result: probe.HTTPResult{StatusCode: 200, Body: `{"status":"down"}`}},
		&fakeTLS{},
	)

	result := e.Evaluate(context.Background(), "example.com")

	if !result.HasIssue(model.IssueContent) {
		t.Fatalf("want a content issue, got %+v", result.Issues)
	}
}

func TestEvaluate_SecurityScoreFloor(t *testing.T) {
	issues := []model.Issue{
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityHigh},
	}
	if got := securityScore(issues); got != 0 {
		t.Fatalf("want score floored at 0, got %d", got)
	}
	if got := securityScore([]model.Issue{{Severity: model.SeverityLow}}); got != 95 {
		t.Fatalf("want 95, got %d", got)
	}
}
