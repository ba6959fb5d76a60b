package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// HTTPProbe issues a GET against https://{domain} and records timings.
// Scans are fixed to HTTPS; plain-HTTP targets are not supported.
type HTTPProbe struct {
	client *http.Client
	cfg    model.CheckConfig

	// urlFor builds the request URL for a domain; tests point it at
	// a local server.
	urlFor func(domain string) string
}

// NewHTTPProbe creates an HTTP probe configured for one batch run
func NewHTTPProbe(cfg model.CheckConfig) *HTTPProbe {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if maxRedirects < 0 {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &HTTPProbe{
		client: client,
		cfg:    cfg,
		urlFor: func(domain string) string { return "https://" + domain },
	}
}

// Check performs the request, retrying transport failures per the run
// configuration. A connection or timeout failure yields a critical HTTP
// issue; a status code outside the expected set yields a medium one.
func (p *HTTPProbe) Check(ctx context.Context, domain string) HTTPResult {
	var result HTTPResult
	var lastErr error

	attempts := p.cfg.RetryCount + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, lastErr = p.request(ctx, domain)
		if lastErr == nil {
			break
		}
		if attempt < attempts {
			select {
			case <-time.After(p.cfg.RetryDelay()):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts
			}
		}
	}

	if lastErr != nil {
		result.Issues = append(result.Issues, model.Issue{
			Type:     model.IssueHTTP,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("HTTP request to %s failed: %v", domain, lastErr),
		})
		return result
	}

	if !p.cfg.StatusCodeExpected(result.StatusCode) {
		result.Issues = append(result.Issues, model.Issue{
			Type:     model.IssueHTTP,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("unexpected HTTP status %d for %s", result.StatusCode, domain),
		})
	}

	return result
}

// request performs a single attempt and measures wall-clock timings
func (p *HTTPProbe) request(ctx context.Context, domain string) (HTTPResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.urlFor(domain), nil)
	if err != nil {
		return HTTPResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.cfg.UserAgent)
	for key, value := range p.cfg.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return HTTPResult{ResponseTimeMs: time.Since(start).Milliseconds()}, err
	}
	defer resp.Body.Close()

	firstByte := time.Since(start)

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	total := time.Since(start)
	if err != nil {
		// Headers arrived, so treat a truncated body as a degraded
		// success rather than a connection failure.
		bodyBytes = nil
	}

	return HTTPResult{
		StatusCode:      resp.StatusCode,
		ResponseTimeMs:  total.Milliseconds(),
		FirstByteTimeMs: firstByte.Milliseconds(),
		DownloadTimeMs:  (total - firstByte).Milliseconds(),
		Body:            string(bodyBytes),
	}, nil
}
