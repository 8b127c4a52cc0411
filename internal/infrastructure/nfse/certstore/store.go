// Package certstore converte o certificado A1 (PKCS#12) do emissor em chave + cadeia,
// persiste o par em PEM ({dir}/{cnpj}.pem) e mantém o material em cache por emissor.

package certstore

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// fingerprintHeader cabeçalho PEM com o SHA-256 do bundle que originou o arquivo.
const fingerprintHeader = "Bundle-Fingerprint"

// Credentials referência ao bundle do emissor.
type Credentials struct {
	IssuerCNPJ string // chave do cache e nome do PEM derivado
	BundlePath string // caminho do .pfx/.p12
	Password   string // pode ser vazia
}

// Material chave e cadeia derivadas do bundle.
type Material struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate   // certificado folha
	Chain       []*x509.Certificate // intermediários, sem a folha
	NotAfter    time.Time
	PEMPath     string
	Fingerprint string
}

// TLSCertificate par para TLS mútuo com o webservice.
func (m *Material) TLSCertificate() tls.Certificate {
	raw := make([][]byte, 0, 1+len(m.Chain))
	raw = append(raw, m.Certificate.Raw)
	for _, c := range m.Chain {
		raw = append(raw, c.Raw)
	}
	return tls.Certificate{Certificate: raw, PrivateKey: m.PrivateKey, Leaf: m.Certificate}
}

// Store cache de material derivado por emissor.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*Material // por CNPJ
	group singleflight.Group
}

// NewStore cria o store gravando os PEM derivados em dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*Material)}
}

// Dir diretório dos certificados.
func (s *Store) Dir() string { return s.dir }

// PEMPath caminho do PEM derivado do emissor.
func (s *Store) PEMPath(cnpj string) string {
	return filepath.Join(s.dir, fiscal.OnlyDigits(cnpj)+".pem")
}

// BundleFile nome do arquivo PKCS#12 do emissor dentro do diretório.
func BundleFile(cnpj string) string {
	return fiscal.OnlyDigits(cnpj) + ".pfx"
}

// SaveBundle grava o PKCS#12 recebido por upload (troca atômica) e descarta o material
// em cache do emissor. Devolve o nome do arquivo relativo ao diretório.
func (s *Store) SaveBundle(cnpj string, bundle []byte) (string, error) {
	digits := fiscal.OnlyDigits(cnpj)
	if digits == "" || len(bundle) == 0 {
		return "", &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonMissingBundle,
			Err: errors.New("bundle vazio")}
	}
	name := BundleFile(digits)
	if err := writeAtomic(s.dir, filepath.Join(s.dir, name), bundle); err != nil {
		return "", &domain.CertificateError{Issuer: digits, Reason: domain.CertReasonWriteFailed, Err: err}
	}
	s.Invalidate(digits)
	return name, nil
}

// Materialize devolve chave e cadeia do emissor. Com o bundle inalterado devolve o
// material em cache sem reprocessar nem regravar o PEM. Derivações concorrentes do
// mesmo emissor são agrupadas; o PEM é gravado em arquivo temporário e renomeado.
func (s *Store) Materialize(ctx context.Context, cred Credentials) (*Material, error) {
	cnpj := fiscal.OnlyDigits(cred.IssuerCNPJ)
	if cnpj == "" || cred.BundlePath == "" {
		return nil, &domain.CertificateError{Issuer: cred.IssuerCNPJ, Reason: domain.CertReasonMissingBundle,
			Err: errors.New("emissor sem certificado provisionado")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle, err := os.ReadFile(cred.BundlePath)
	if err != nil {
		reason := domain.CertReasonMissingBundle
		if !errors.Is(err, fs.ErrNotExist) {
			reason = domain.CertReasonUnrecognizedFormat
		}
		return nil, &domain.CertificateError{Issuer: cnpj, Reason: reason, Err: err}
	}
	fp := fingerprint(bundle)

	s.mu.RLock()
	cached, ok := s.cache[cnpj]
	s.mu.RUnlock()
	if ok && cached.Fingerprint == fp {
		return cached, nil
	}

	v, err, _ := s.group.Do(cnpj+":"+fp, func() (interface{}, error) {
		m, err := s.loadOrDerive(cnpj, bundle, fp, cred.Password)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[cnpj] = m
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Material), nil
}

// Invalidate descarta o cache do emissor (usado após upload de novo bundle).
func (s *Store) Invalidate(cnpj string) {
	s.mu.Lock()
	delete(s.cache, fiscal.OnlyDigits(cnpj))
	s.mu.Unlock()
}

// Expiry lê a validade do certificado folha do PEM derivado, sem tocar na chave privada.
func (s *Store) Expiry(cnpj string) (time.Time, error) {
	data, err := os.ReadFile(s.PEMPath(cnpj))
	if err != nil {
		return time.Time{}, &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonMissingBundle, Err: err}
	}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return time.Time{}, &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonUnrecognizedFormat, Err: err}
		}
		return cert.NotAfter, nil
	}
	return time.Time{}, &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonNoCertificate}
}

// ── derivação ────────────────────────────────────────────────────────────────

func (s *Store) loadOrDerive(cnpj string, bundle []byte, fp, password string) (*Material, error) {
	path := s.PEMPath(cnpj)

	// PEM já derivado do mesmo bundle (ex.: após reinício do processo).
	if existing, err := os.ReadFile(path); err == nil {
		if m, err := parsePEM(existing, fp); err == nil {
			m.PEMPath = path
			log.Debug().Str("component", "certstore").Str("issuer", cnpj).Msg("material reutilizado do PEM derivado")
			return m, nil
		}
	}

	m, err := Decode(cnpj, bundle, password)
	if err != nil {
		return nil, err
	}
	m.PEMPath = path
	if err := writeAtomic(s.dir, path, EncodePEM(m)); err != nil {
		return nil, &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonWriteFailed, Err: err}
	}
	log.Info().Str("component", "certstore").Str("issuer", cnpj).
		Time("not_after", m.NotAfter).Msg("certificado derivado do bundle")
	return m, nil
}

// Decode abre o PKCS#12 em memória, sem gravar nada. Só chaves RSA são aceitas.
func Decode(cnpj string, bundle []byte, password string) (*Material, error) {
	key, leaf, chain, err := pkcs12.DecodeChain(bundle, password)
	if err != nil {
		return nil, &domain.CertificateError{Issuer: cnpj, Reason: classify(err), Err: err}
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, &domain.CertificateError{Issuer: cnpj, Reason: domain.CertReasonUnrecognizedFormat,
			Err: fmt.Errorf("chave %T não suportada, apenas RSA", key)}
	}
	return &Material{
		PrivateKey:  rsaKey,
		Certificate: leaf,
		Chain:       chain,
		NotAfter:    leaf.NotAfter,
		Fingerprint: fingerprint(bundle),
	}, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, pkcs12.ErrIncorrectPassword), errors.Is(err, pkcs12.ErrDecryption):
		return domain.CertReasonWrongPassword
	case strings.Contains(err.Error(), "certificate missing"):
		return domain.CertReasonNoCertificate
	default:
		return domain.CertReasonUnrecognizedFormat
	}
}

// EncodePEM serializa chave, folha e cadeia; o cabeçalho da chave leva o fingerprint do bundle.
func EncodePEM(m *Material) []byte {
	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{
		Type:    "RSA PRIVATE KEY",
		Headers: map[string]string{fingerprintHeader: m.Fingerprint},
		Bytes:   x509.MarshalPKCS1PrivateKey(m.PrivateKey),
	})
	_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: m.Certificate.Raw})
	for _, c := range m.Chain {
		_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	}
	return buf.Bytes()
}

// parsePEM aceita o arquivo apenas se o cabeçalho de fingerprint coincidir.
func parsePEM(data []byte, wantFP string) (*Material, error) {
	m := &Material{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			if block.Headers[fingerprintHeader] != wantFP {
				return nil, errors.New("fingerprint divergente")
			}
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			m.PrivateKey = key
			m.Fingerprint = wantFP
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, err
			}
			if m.Certificate == nil {
				m.Certificate = cert
			} else {
				m.Chain = append(m.Chain, cert)
			}
		}
	}
	if m.PrivateKey == nil || m.Certificate == nil {
		return nil, errors.New("PEM incompleto")
	}
	m.NotAfter = m.Certificate.NotAfter
	return m, nil
}

func writeAtomic(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("criar diretório: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("arquivo temporário: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("gravar arquivo: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("permissão do arquivo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fechar arquivo: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renomear arquivo: %w", err)
	}
	return nil
}

func fingerprint(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
