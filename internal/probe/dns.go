package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// DNSProbe resolves a domain and reports resolvability
type DNSProbe struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewDNSProbe creates a DNS probe using the given per-lookup timeout
func NewDNSProbe(cfg model.CheckConfig) *DNSProbe {
	return &DNSProbe{
		resolver: net.DefaultResolver,
		timeout:  cfg.Timeout(),
	}
}

// Check resolves the domain. Any resolution error becomes a critical DNS issue.
func (p *DNSProbe) Check(ctx context.Context, domain string) DNSResult {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	addrs, err := p.resolver.LookupHost(lookupCtx, domain)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return DNSResult{
			LookupTimeMs: elapsed,
			Issues: []model.Issue{{
				Type:     model.IssueDNS,
				Severity: model.SeverityCritical,
				Message:  fmt.Sprintf("DNS resolution failed for %s: %v", domain, err),
			}},
		}
	}

	return DNSResult{
		Resolved:     true,
		Addresses:    addrs,
		LookupTimeMs: elapsed,
	}
}
