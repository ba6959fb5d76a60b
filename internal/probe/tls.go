package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// TLSProbe opens a TLS connection and inspects the peer certificate
type TLSProbe struct {
	cfg model.CheckConfig

	// addrFor builds the dial address for a domain; tests point it at
	// a local listener.
	addrFor func(domain string) string
	// now is injected so expiry-window tests are deterministic
	now func() time.Time
}

// NewTLSProbe creates a TLS probe configured for one batch run
func NewTLSProbe(cfg model.CheckConfig) *TLSProbe {
	return &TLSProbe{
		cfg:     cfg,
		addrFor: func(domain string) string { return net.JoinHostPort(domain, "443") },
		now:     time.Now,
	}
}

// Check connects to the domain on port 443 and reads the leaf
// certificate's expiry. An unreadable or invalid certificate yields a
// high-severity SSL issue; approaching expiry yields medium (30 days)
// or high (7 days) warnings.
func (p *TLSProbe) Check(ctx context.Context, domain string) TLSResult {
	dialer := &net.Dialer{Timeout: p.cfg.Timeout()}

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
	defer cancel()

	rawConn, err := dialer.DialContext(dialCtx, "tcp", p.addrFor(domain))
	if err != nil {
		return TLSResult{Issues: []model.Issue{{
			Type:     model.IssueSSL,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("TLS connection to %s failed: %v", domain, err),
		}}}
	}
	defer rawConn.Close()

	tlsConn := tls.Client(rawConn, &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: p.cfg.InsecureSkipVerify,
	})
	defer tlsConn.Close()

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = rawConn.SetDeadline(deadline)
	}

	if err := tlsConn.HandshakeContext(dialCtx); err != nil {
		return TLSResult{Issues: []model.Issue{{
			Type:     model.IssueSSL,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("TLS handshake with %s failed: %v", domain, err),
		}}}
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return TLSResult{Issues: []model.Issue{{
			Type:     model.IssueSSL,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("no peer certificate presented by %s", domain),
		}}}
	}

	expiry := certs[0].NotAfter
	result := TLSResult{Valid: true, Expiry: &expiry}

	now := p.now()
	switch remaining := expiry.Sub(now); {
	case remaining <= 0:
		result.Valid = false
		result.Issues = append(result.Issues, model.Issue{
			Type:     model.IssueSSL,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("certificate for %s expired at %s", domain, expiry.Format(time.RFC3339)),
		})
	case remaining <= expiryHighWindow:
		result.Issues = append(result.Issues, model.Issue{
			Type:     model.IssueSSL,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("certificate for %s expires in %d days", domain, int(remaining.Hours()/24)),
		})
	case remaining <= expiryWarnWindow:
		result.Issues = append(result.Issues, model.Issue{
			Type:     model.IssueSSL,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("certificate for %s expires in %d days", domain, int(remaining.Hours()/24)),
		})
	}

	return result
}
