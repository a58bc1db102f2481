package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Verifier checks a detached signature over a payload.
type Verifier interface {
	Verify(payload, signature []byte) error
}

// RSASigner verifies RSA-PKCS1v15-SHA256 signatures made by the payment
// provider. Sign needs the private key and is used by tests and tooling.
type RSASigner struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey // optional; nil => verify-only
}

func NewRSAVerifier(pub *rsa.PublicKey) *RSASigner { return &RSASigner{pub: pub} }

func NewRSASigner(priv *rsa.PrivateKey) *RSASigner {
	return &RSASigner{pub: &priv.PublicKey, priv: priv}
}

// NewRSAVerifierFromPEM parses a PKIX "PUBLIC KEY" block.
func NewRSAVerifierFromPEM(pemText string) (*RSASigner, error) {
	pub, err := ParseRSAPublicKeyPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parse rsa pub pem: %w", err)
	}
	return NewRSAVerifier(pub), nil
}

func (s *RSASigner) Sign(payload []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, errors.New("signing not configured (no RSA private key)")
	}
	sum := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.priv, crypto.SHA256, sum[:])
	if err != nil {
		return nil, fmt.Errorf("rsa sign: %w", err)
	}
	return sig, nil
}

func (s *RSASigner) Verify(payload, signature []byte) error {
	sum := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(s.pub, crypto.SHA256, sum[:], signature); err != nil {
		return fmt.Errorf("rsa verify: %w", err)
	}
	return nil
}

func ParseRSAPublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}

func ParseRSAPrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block in RSA private key")
	}

	// try PKCS#8 first
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("not an RSA private key in PKCS#8")
	}

	// fallback to PKCS#1
	rsaKey, err2 := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse RSA private key failed (PKCS#8: %v, PKCS#1: %v)", err, err2)
	}
	return rsaKey, nil
}
