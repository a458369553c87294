// Package devtls adapts the teacher's tls.GenerateTLS self-signed cert
// helper (tls/tls_generate.go) into TIPS's local/dev HTTPS mode. Production
// TLS termination is external to TIPS (load balancer, ingress); this exists
// only so a developer can bind the Bundle Store's reader surface over
// HTTPS on a laptop the way the teacher's examples/tls-server does.
package devtls

import (
	"crypto/tls"
	"fmt"
	"time"

	utilstls "github.com/flashbots/tips/tls"
)

// DefaultValidFor matches the teacher's tls-server example (265 days).
const DefaultValidFor = 265 * 24 * time.Hour

// Config describes where a dev-mode certificate is cached and which
// hosts/IPs it should cover.
type Config struct {
	CertPath string
	KeyPath  string
	Hosts    []string
	ValidFor time.Duration
}

func (c Config) withDefaults() Config {
	if c.ValidFor <= 0 {
		c.ValidFor = DefaultValidFor
	}
	if len(c.Hosts) == 0 {
		c.Hosts = []string{"localhost"}
	}
	return c
}

// LoadOrGenerate returns a *tls.Config backed by a cached self-signed
// certificate at cfg.CertPath/cfg.KeyPath, generating and persisting one on
// first run.
func LoadOrGenerate(cfg Config) (*tls.Config, error) {
	cfg = cfg.withDefaults()

	cert, key, err := utilstls.GetOrGenerateTLS(cfg.CertPath, cfg.KeyPath, cfg.ValidFor, cfg.Hosts)
	if err != nil {
		return nil, fmt.Errorf("devtls: loading or generating certificate: %w", err)
	}

	pair, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("devtls: parsing certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
