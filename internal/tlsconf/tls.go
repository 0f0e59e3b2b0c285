// Package tlsconf builds TLS configurations for the widget server: automatic
// certificates through CertMagic, or PEM files supplied by the operator.
package tlsconf

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/spf13/viper"
)

// CertMagicConfig configures automatic certificate management with CertMagic.
type CertMagicConfig struct {
	Domain     string
	Email      string
	StorageDir string // optional; defaults to XDG or ~/.cache/orbitchat/certmagic
	CA         string // optional; defaults to Let's Encrypt prod
	// EnableHTTP01 returns a handler the caller must serve on :80.
	EnableHTTP01 bool
}

// BuildCertMagicTLS provisions/loads certificates via CertMagic and returns a
// TLS config plus an HTTP handler for HTTP-01 challenges.
func BuildCertMagicTLS(ctx context.Context, cfg CertMagicConfig) (*tls.Config, http.Handler, error) {
	if cfg.Domain == "" {
		return nil, nil, errors.New("domain is required")
	}

	cm := certmagic.NewDefault()
	if cfg.StorageDir == "" {
		cfg.StorageDir = defaultStorageDir()
	}
	if err := os.MkdirAll(cfg.StorageDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("cert storage: %w", err)
	}
	cm.Storage = &certmagic.FileStorage{Path: cfg.StorageDir}

	issuer := certmagic.NewACMEIssuer(cm, certmagic.ACMEIssuer{
		CA:                   ifEmpty(cfg.CA, certmagic.LetsEncryptProductionCA),
		Email:                cfg.Email,
		Agreed:               true,
		DisableHTTPChallenge: !cfg.EnableHTTP01,
	})
	cm.Issuers = []certmagic.Issuer{issuer}

	if err := cm.ManageSync(ctx, []string{cfg.Domain}); err != nil {
		return nil, nil, err
	}

	tlsConf := cm.TLSConfig()
	tlsConf.NextProtos = appendMissing(tlsConf.NextProtos, "h2", "http/1.1")
	tlsConf.MinVersion = tls.VersionTLS12

	if cfg.EnableHTTP01 {
		return tlsConf, issuer.HTTPChallengeHandler(http.NotFoundHandler()), nil
	}
	return tlsConf, nil, nil
}

func defaultStorageDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "orbitchat", "certmagic")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "orbitchat", "certmagic")
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

func appendMissing(list []string, protos ...string) []string {
	for _, p := range protos {
		found := false
		for _, have := range list {
			if have == p {
				found = true
				break
			}
		}
		if !found {
			list = append(list, p)
		}
	}
	return list
}

// ParsePort extracts an integer port from a host:port address; returns 0 if absent.
func ParsePort(addr string) int {
	if addr == "" {
		return 0
	}
	lastColon := strings.LastIndex(addr, ":")
	if lastColon < 0 || lastColon == len(addr)-1 {
		return 0
	}
	p, _ := strconv.Atoi(addr[lastColon+1:])
	return p
}

// BuildFileTLS loads a certificate from PEM files for BYO certs.
func BuildFileTLS(certFile, keyFile string) (*tls.Config, error) {
	return buildFileTLS(certFile, keyFile, time.Now())
}

func buildFileTLS(certFile, keyFile string, now time.Time) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("both certFile and keyFile are required")
	}

	c, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	for i, b := range c.Certificate {
		cert, err := x509.ParseCertificate(b)
		if err != nil {
			return nil, fmt.Errorf("invalid certificate at index %d: %w", i, err)
		}
		if now.Before(cert.NotBefore) {
			return nil, fmt.Errorf("certificate not yet valid (starts %s)", cert.NotBefore)
		}
		if now.After(cert.NotAfter) {
			return nil, fmt.Errorf("certificate expired on %s", cert.NotAfter)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{c},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// FromViper builds the server TLS config from the [tls] section. It returns
// a nil config when TLS is not configured. The handler, when non-nil, answers
// ACME HTTP-01 challenges.
func FromViper(ctx context.Context, v *viper.Viper) (*tls.Config, http.Handler, error) {
	if cert, key := v.GetString("tls.cert_file"), v.GetString("tls.key_file"); cert != "" || key != "" {
		conf, err := BuildFileTLS(cert, key)
		return conf, nil, err
	}
	if domain := v.GetString("tls.domain"); domain != "" {
		return BuildCertMagicTLS(ctx, CertMagicConfig{
			Domain:       domain,
			Email:        v.GetString("tls.email"),
			StorageDir:   v.GetString("tls.storage_dir"),
			EnableHTTP01: true,
		})
	}
	return nil, nil, nil
}
