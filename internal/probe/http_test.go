package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sentinelhq/domainwatch/internal/model"
)

func newHTTPTestProbe(cfg model.CheckConfig, url string) *HTTPProbe {
	cfg.SetDefaults()
	p := NewHTTPProbe(cfg)
	p.urlFor = func(domain string) string { return url }
	return p
}

func TestHTTPProbe_OK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"up"}`))
	}))
	defer s.Close()

	p := newHTTPTestProbe(model.CheckConfig{}, s.URL)
	result := p.Check(context.Background(), "example.com")

	if len(result.Issues) != 0 {
		t.Fatalf("want no issues, got %+v", result.Issues)
	}
	if result.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", result.StatusCode)
	}
	if result.Body != `{"status":"up"}` {
		t.Fatalf("want body captured, got %q", result.Body)
	}
	if result.ResponseTimeMs < 0 {
		t.Fatalf("response time should be >= 0, got %d", result.ResponseTimeMs)
	}
}

func TestHTTPProbe_UnexpectedStatusIsMediumIssue(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer s.Close()

	p := newHTTPTestProbe(model.CheckConfig{}, s.URL)
	result := p.Check(context.Background(), "example.com")

	if result.StatusCode != 503 {
		t.Fatalf("want status 503, got %d", result.StatusCode)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("want 1 issue, got %+v", result.Issues)
	}
	if result.Issues[0].Severity != model.SeverityMedium {
		t.Fatalf("want medium severity, got %s", result.Issues[0].Severity)
	}
	if result.Issues[0].Type != model.IssueHTTP {
		t.Fatalf("want http issue, got %s", result.Issues[0].Type)
	}
}

func TestHTTPProbe_CustomExpectedStatusCodes(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	defer s.Close()

	p := newHTTPTestProbe(model.CheckConfig{ExpectedStatusCodes: []int{204}}, s.URL)
	result := p.Check(context.Background(), "example.com")

	if len(result.Issues) != 0 {
		t.Fatalf("want no issues for expected 204, got %+v", result.Issues)
	}
}

func TestHTTPProbe_ConnectionFailureIsCriticalIssue(t *testing.T) {
	// Start and immediately close a server so the port refuses connections
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	p := newHTTPTestProbe(model.CheckConfig{TimeoutSeconds: 1, RetryDelayMs: 1}, url)
	result := p.Check(context.Background(), "example.com")

	if len(result.Issues) != 1 {
		t.Fatalf("want 1 issue, got %+v", result.Issues)
	}
	if result.Issues[0].Severity != model.SeverityCritical {
		t.Fatalf("want critical severity, got %s", result.Issues[0].Severity)
	}
}

func TestHTTPProbe_RetriesTransportFailures(t *testing.T) {
	var calls int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Kill the connection so the client sees a transport error
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatalf("server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack failed: %v", err)
			}
			conn.Close()
			return
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	p := newHTTPTestProbe(model.CheckConfig{RetryCount: 2, RetryDelayMs: 1}, s.URL)
	result := p.Check(context.Background(), "example.com")

	if len(result.Issues) != 0 {
		t.Fatalf("want retry to succeed, got issues %+v", result.Issues)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("want 2 attempts, got %d", got)
	}
}

func TestHTTPProbe_SendsConfiguredHeaders(t *testing.T) {
	var gotUA, gotCustom string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Check")
		w.WriteHeader(200)
	}))
	defer s.Close()

	p := newHTTPTestProbe(model.CheckConfig{
		Headers: map[string]string{"X-Check": "fleet"},
	}, s.URL)
	p.Check(context.Background(), "example.com")

	if gotUA != "domainwatch/1.0" {
		t.Fatalf("want default user agent, got %q", gotUA)
	}
	if gotCustom != "fleet" {
		t.Fatalf("want custom header forwarded, got %q", gotCustom)
	}
}
