// SPDX-License-Identifier: MIT

package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestGenerateSelfSigned(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "filechain.crt")
	keyPath := filepath.Join(dir, "certs", "filechain.key")

	require.NoError(t, GenerateSelfSigned(certPath, keyPath, time.Hour, []string{"Ledger.LAN", "bücher.example", "10.0.0.7", "localhost"}))

	_, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)

	cert := parseCert(t, certPath)
	assert.ElementsMatch(t, []string{"localhost", "ledger.lan", "xn--bcher-kva.example"}, cert.DNSNames)
	assert.True(t, slicesHasIP(cert.IPAddresses, "10.0.0.7"))
	assert.True(t, slicesHasIP(cert.IPAddresses, "127.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), cert.NotAfter, 2*time.Minute)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateSelfSigned_RejectsInvalidHost(t *testing.T) {
	dir := t.TempDir()
	err := GenerateSelfSigned(filepath.Join(dir, "c.crt"), filepath.Join(dir, "c.key"), time.Hour, []string{"bad host!"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid certificate host")
}

func TestEnsureCertificates(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CertPath: filepath.Join(dir, "tls.crt"),
		KeyPath:  filepath.Join(dir, "tls.key"),
		Logger:   zerolog.Nop(),
	}
	require.NoError(t, EnsureCertificates(cfg))
	first := parseCert(t, cfg.CertPath)

	require.NoError(t, EnsureCertificates(cfg))
	assert.Equal(t, first.SerialNumber, parseCert(t, cfg.CertPath).SerialNumber, "existing pair is kept")

	require.NoError(t, os.Remove(cfg.KeyPath))
	require.NoError(t, EnsureCertificates(cfg))
	assert.NotEqual(t, first.SerialNumber, parseCert(t, cfg.CertPath).SerialNumber, "half pair is regenerated")

	assert.Error(t, EnsureCertificates(Config{Logger: zerolog.Nop()}))
}

func slicesHasIP(ips []net.IP, want string) bool {
	w := net.ParseIP(want)
	for _, ip := range ips {
		if ip.Equal(w) {
			return true
		}
	}
	return false
}
