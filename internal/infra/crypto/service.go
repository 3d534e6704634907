package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"signet/internal/domain"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CanonicalizePayload produces the exact bytes the platform key signs
// for one signature. Callers persist these bytes next to the signature
// so verification never has to re-derive them.
func (s *Service) CanonicalizePayload(p domain.SignablePayload) ([]byte, error) {
	if p.V != domain.SignablePayloadVersion {
		return nil, fmt.Errorf("unsupported payload version: %d", p.V)
	}
	return CanonicalizeAny(p)
}

func (s *Service) CanonicalizeCertificate(cert domain.Certificate) ([]byte, error) {
	return CanonicalizeAny(cert)
}

func (s *Service) CanonicalizeAny(payload any) ([]byte, error) {
	return CanonicalizeAny(payload)
}

func (s *Service) HashDocument(mediaType string, input []byte) (string, error) {
	return HashDocument(mediaType, input)
}

func (s *Service) VerifySignature(payload, sig, pubKey []byte) error {
	return VerifySignature(payload, sig, pubKey)
}

func VerifySignature(payload, sig, pubKey []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key length: %d", len(pubKey))
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid ed25519 signature length: %d", len(sig))
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func VerifyEncodedSignature(payload []byte, sigB64 string, pubKey []byte) error {
	if sigB64 == "" {
		return errors.New("signature value is required")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	return VerifySignature(payload, sig, pubKey)
}

// NewNonce returns 16 random bytes hex-encoded, one per signable
// payload, so identical documents signed twice never produce the same
// signed bytes.
func NewNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
