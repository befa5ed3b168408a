package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

const (
	ALPNHTTP2  = "h2"
	ALPNHTTP11 = "http/1.1"
)

// SSLConfig describes how the TLS context for a secure origin is obtained.
type SSLConfig struct {
	// Verify enables server certificate verification.
	Verify bool
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string
	// RootCAs, if set, takes priority over CAFile.
	RootCAs *x509.CertPool

	// CertFile and KeyFile configure a client certificate.
	CertFile, KeyFile string

	// DisableHTTP2 removes "h2" from the advertised ALPN protocols, so the
	// negotiation always picks HTTP/1.1.
	DisableHTTP2 bool
}

var DefaultSSLConfig = SSLConfig{Verify: true}

var ErrKeyWithoutCert = errors.New("ssl: KeyFile set without CertFile")

// TLSConfig builds the *[tls.Config] for a handshake with serverName.
func (c *SSLConfig) TLSConfig(serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		NextProtos: []string{ALPNHTTP2, ALPNHTTP11},
		MinVersion: tls.VersionTLS12,
	}
	if c.DisableHTTP2 {
		cfg.NextProtos = []string{ALPNHTTP11}
	}
	if !c.Verify {
		cfg.InsecureSkipVerify = true
	}

	switch {
	case c.RootCAs != nil:
		cfg.RootCAs = c.RootCAs
	case c.CAFile != "":
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("ssl: reading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ssl: no certificates found in %s", c.CAFile)
		}
		cfg.RootCAs = pool
	}

	if c.CertFile != "" {
		keyFile := c.KeyFile
		if keyFile == "" {
			keyFile = c.CertFile // combined PEM
		}
		cert, err := tls.LoadX509KeyPair(c.CertFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("ssl: loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	} else if c.KeyFile != "" {
		return nil, ErrKeyWithoutCert
	}
	return cfg, nil
}
