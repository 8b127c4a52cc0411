// Package certtest gera certificados A1 descartáveis para testes.
package certtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

// Identity chave e certificado autoassinado.
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// New gera uma identidade RSA 2048 válida por um ano.
func New(t testing.TB, commonName string) *Identity {
	t.Helper()
	return NewWithExpiry(t, commonName, time.Now().Add(365*24*time.Hour))
}

// NewWithExpiry gera uma identidade com validade explícita.
func NewWithExpiry(t testing.TB, commonName string, notAfter time.Time) *Identity {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"ICP-Brasil Teste"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &Identity{Key: key, Cert: cert}
}

// Bundle codifica a identidade em PKCS#12.
func (id *Identity) Bundle(t testing.TB, password string) []byte {
	t.Helper()
	pfx, err := pkcs12.Modern.Encode(id.Key, id.Cert, nil, password)
	require.NoError(t, err)
	return pfx
}

// WriteBundle grava o PKCS#12 em dir/name e devolve o caminho.
func (id *Identity) WriteBundle(t testing.TB, dir, name, password string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, id.Bundle(t, password), 0o600))
	return path
}
