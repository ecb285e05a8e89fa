// SPDX-License-Identifier: MIT

// Package tls provisions the certificate pair filechaind serves HTTPS with.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/idna"

	"github.com/ManuGH/filechain/internal/log"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 2 * 365 * 24 * time.Hour

// Config locates the certificate pair.
type Config struct {
	CertPath string
	KeyPath  string
	// Hosts are extra DNS names or IPs added to the certificate.
	Hosts []string
	// Validity defaults to DefaultValidity.
	Validity time.Duration
	Logger   zerolog.Logger
}

// EnsureCertificates keeps an existing pair and otherwise generates a
// self-signed one. A half-present pair is regenerated.
func EnsureCertificates(cfg Config) error {
	if cfg.CertPath == "" || cfg.KeyPath == "" {
		return fmt.Errorf("tls: certificate and key paths are required")
	}
	certExists, keyExists := isFile(cfg.CertPath), isFile(cfg.KeyPath)
	if certExists && keyExists {
		cfg.Logger.Debug().Str("cert", cfg.CertPath).Msg("using existing TLS certificate")
		return nil
	}
	if certExists || keyExists {
		cfg.Logger.Warn().
			Bool("cert_exists", certExists).
			Bool("key_exists", keyExists).
			Msg("incomplete TLS pair found, regenerating both")
	}

	hosts := append(slices.Clone(cfg.Hosts), localIPs()...)
	if err := GenerateSelfSigned(cfg.CertPath, cfg.KeyPath, cfg.Validity, hosts); err != nil {
		return err
	}
	cfg.Logger.Info().
		Str(log.FieldEvent, "tls.generated").
		Str("cert", cfg.CertPath).
		Strs("hosts", hosts).
		Msg("generated self-signed TLS certificate")
	return nil
}

// GenerateSelfSigned writes a fresh ECDSA P-256 certificate valid for
// localhost plus hosts. Both files are replaced atomically; the key is 0600.
func GenerateSelfSigned(certPath, keyPath string, validity time.Duration, hosts []string) error {
	if validity <= 0 {
		validity = DefaultValidity
	}
	for _, p := range []string{certPath, keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return fmt.Errorf("create cert directory: %w", err)
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"filechain"}, CommonName: "filechain"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range append([]string{"localhost", "127.0.0.1", "::1"}, hosts...) {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			if !slices.ContainsFunc(tmpl.IPAddresses, ip.Equal) {
				tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			}
			continue
		}
		name, err := normalizeDNSName(h)
		if err != nil {
			return err
		}
		if !slices.Contains(tmpl.DNSNames, name) {
			tmpl.DNSNames = append(tmpl.DNSNames, name)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})
	if err := renameio.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := renameio.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	return nil
}

// normalizeDNSName lowercases host and converts it to its ASCII (punycode) form.
func normalizeDNSName(host string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid certificate host %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// localIPs returns the host's non-loopback, non-link-local addresses so the
// certificate also verifies when reached over the LAN.
func localIPs() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var out []string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ipnet.IP.String())
	}
	return out
}
