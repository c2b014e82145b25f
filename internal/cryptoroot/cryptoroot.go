package cryptoroot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

const (
	PrivateKeyFile  = "private-key.pem"
	PublicKeyFile   = "public-key.pem"
	CertificateFile = "certificate.pem"
)

var logger = log.New("cryptoroot")

// Provider holds the long-lived signing key and the certificate announced in x5c.
type Provider struct {
	PrivateKey     *ecdsa.PrivateKey
	PublicKey      *ecdsa.PublicKey
	CertificatePEM []byte
	Certificate    *x509.Certificate
}

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil
}

// LoadOrGenerate reads the key material from dir, generating and persisting it when absent.
func LoadOrGenerate(dir, dnsName string) (*Provider, error) {
	privPath := filepath.Join(dir, PrivateKeyFile)
	pubPath := filepath.Join(dir, PublicKeyFile)
	certPath := filepath.Join(dir, CertificateFile)

	if fileExists(privPath) && fileExists(certPath) {
		privPEM, err := os.ReadFile(privPath)
		if err != nil {
			return nil, err
		}
		certPEM, err := os.ReadFile(certPath)
		if err != nil {
			return nil, err
		}
		var pubPEM []byte
		if fileExists(pubPath) {
			if pubPEM, err = os.ReadFile(pubPath); err != nil {
				return nil, err
			}
		}

		p, err := NewProvider(privPEM, pubPEM, certPEM)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded signing key and certificate", zap.String("dir", dir))
		return p, nil
	}

	logger.Info("generating ES256 signing key and certificate", zap.String("dir", dir))

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keys dir: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	_, derBytes, err := createSelfSignedCertificate(key, dnsName)
	if err != nil {
		return nil, err
	}

	privPEM, err := encodePrivateKeyPEM(key)
	if err != nil {
		return nil, err
	}
	pubPEM, err := encodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, err
	}

	return NewProvider(privPEM, pubPEM, certPEM)
}

// NewProvider builds a provider from PEM material. The public key PEM is optional.
func NewProvider(privPEM, pubPEM, certPEM []byte) (*Provider, error) {
	key, err := parsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must use P-256 for ES256, got %s", key.Curve.Params().Name)
	}

	if len(pubPEM) > 0 {
		pub, err := parsePublicKey(pubPEM)
		if err != nil {
			return nil, err
		}
		if !pub.Equal(&key.PublicKey) {
			return nil, errors.New("public key does not match private key")
		}
	}

	der, err := CertificateBody(certPEM)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	p := &Provider{
		PrivateKey:     key,
		PublicKey:      &key.PublicKey,
		CertificatePEM: certPEM,
		Certificate:    cert,
	}
	if !p.MatchesCertificate() {
		logger.Warn("certificate public key does not match the signing key",
			zap.String("subject", cert.Subject.String()))
	}
	return p, nil
}

// CertificateBody returns the DER bytes of the first CERTIFICATE block.
func CertificateBody(certPEM []byte) ([]byte, error) {
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("pem block was not found")
		}
		if block.Type == "CERTIFICATE" {
			return block.Bytes, nil
		}
	}
}

func (p *Provider) SigningKey() *ecdsa.PrivateKey {
	return p.PrivateKey
}

// CertChain is the x5c header value: one base64 DER entry, no PEM armor.
func (p *Provider) CertChain() []string {
	return []string{base64.StdEncoding.EncodeToString(p.Certificate.Raw)}
}

func (p *Provider) MatchesCertificate() bool {
	pub, ok := p.Certificate.PublicKey.(*ecdsa.PublicKey)
	return ok && pub.Equal(p.PublicKey)
}
