package probe

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// startTLSServer runs a local TLS listener presenting a self-signed
// certificate with the given expiry
func startTLSServer(t *testing.T, notAfter time.Time) (string, func()) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		DNSNames:     []string{"example.com"},
		NotBefore:    notAfter.Add(-365 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if tlsConn, ok := c.(*tls.Conn); ok {
					_ = tlsConn.Handshake()
				}
			}(conn)
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func newTLSTestProbe(addr string, now time.Time) *TLSProbe {
	cfg := model.CheckConfig{InsecureSkipVerify: true}
	cfg.SetDefaults()
	p := NewTLSProbe(cfg)
	p.addrFor = func(domain string) string { return addr }
	p.now = func() time.Time { return now }
	return p
}

func TestTLSProbe_ValidCertificate(t *testing.T) {
	notAfter := time.Now().Add(100 * 24 * time.Hour)
	addr, stop := startTLSServer(t, notAfter)
	defer stop()

	p := newTLSTestProbe(addr, notAfter.Add(-60*24*time.Hour))
	result := p.Check(context.Background(), "example.com")

	if !result.Valid {
		t.Fatalf("want valid certificate, got %+v", result)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("want no issues, got %+v", result.Issues)
	}
	if result.Expiry == nil || !result.Expiry.Equal(notAfter.Truncate(time.Second)) {
		t.Fatalf("want expiry %v, got %v", notAfter, result.Expiry)
	}
}

func TestTLSProbe_ExpiryInsideWarnWindow(t *testing.T) {
	notAfter := time.Now().Add(100 * 24 * time.Hour)
	addr, stop := startTLSServer(t, notAfter)
	defer stop()

	p := newTLSTestProbe(addr, notAfter.Add(-10*24*time.Hour))
	result := p.Check(context.Background(), "example.com")

	if !result.Valid {
		t.Fatalf("certificate should still be valid, got %+v", result)
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != model.SeverityMedium {
		t.Fatalf("want one medium issue at 10 days out, got %+v", result.Issues)
	}
}

func TestTLSProbe_ExpiryInsideHighWindow(t *testing.T) {
	notAfter := time.Now().Add(100 * 24 * time.Hour)
	addr, stop := startTLSServer(t, notAfter)
	defer stop()

	p := newTLSTestProbe(addr, notAfter.Add(-3*24*time.Hour))
	result := p.Check(context.Background(), "example.com")

	if len(result.Issues) != 1 || result.Issues[0].Severity != model.SeverityHigh {
		t.Fatalf("want one high issue at 3 days out, got %+v", result.Issues)
	}
}

func TestTLSProbe_ExpiredCertificate(t *testing.T) {
	notAfter := time.Now().Add(100 * 24 * time.Hour)
	addr, stop := startTLSServer(t, notAfter)
	defer stop()

	p := newTLSTestProbe(addr, notAfter.Add(time.Hour))
	result := p.Check(context.Background(), "example.com")

	if result.Valid {
		t.Fatalf("want invalid for expired certificate, got %+v", result)
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != model.SeverityHigh {
		t.Fatalf("want one high issue for expired certificate, got %+v", result.Issues)
	}
}

func TestTLSProbe_ConnectionRefused(t *testing.T) {
	addr, stop := startTLSServer(t, time.Now().Add(time.Hour))
	stop()

	p := newTLSTestProbe(addr, time.Now())
	result := p.Check(context.Background(), "example.com")

	if result.Valid {
		t.Fatalf("want invalid on connection failure")
	}
	if len(result.Issues) != 1 || result.Issues[0].Type != model.IssueSSL {
		t.Fatalf("want one ssl issue, got %+v", result.Issues)
	}
	if result.Issues[0].Severity != model.SeverityHigh {
		t.Fatalf("want high severity, got %s", result.Issues[0].Severity)
	}
}
