// Package certverify checks signature certificate artifacts without
// talking to the signing service. Given the artifact bytes and the
// platform public key it verifies the platform countersignature, the
// embedded signature, and the consistency of the certified fields, so
// a relying party can validate a certificate it received out of band.
//
// Revocation is a live property of the service and is not visible
// offline; callers who need it must ask the public verification
// endpoint.
package certverify

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
)

var (
	ErrMalformed        = errors.New("malformed certificate artifact")
	ErrCountersignature = errors.New("invalid platform countersignature")
	ErrSignature        = errors.New("invalid signature")
	ErrInconsistent     = errors.New("certificate does not match signed payload")
	ErrDocumentMismatch = errors.New("document does not match certified hash")
)

type Options struct {
	// PlatformPublicKey verifies both the countersignature and the
	// embedded signature; the platform signs with a single key.
	PlatformPublicKey ed25519.PublicKey
	// Document, when set, is hashed and compared against the certified
	// document hash.
	Document []byte
}

type Signer struct {
	ID    string
	Name  string
	Email string
}

type Result struct {
	CertificateID string
	DocumentID    string
	DocumentType  string
	DocumentHash  string
	Signer        Signer
	SignedAt      time.Time
	KeyID         string
	Nonce         string
	// DocumentMatch is nil when no document bytes were supplied.
	DocumentMatch *bool
}

// Verify validates one certificate artifact. The artifact does not have
// to be canonically encoded; it is re-canonicalized before either
// signature check, so a pretty-printed copy still verifies.
func Verify(artifact []byte, opts Options) (Result, error) {
	if len(opts.PlatformPublicKey) != ed25519.PublicKeySize {
		return Result{}, errors.New("platform public key is required")
	}

	var envelope struct {
		Certificate      json.RawMessage         `json:"certificate"`
		Countersignature domain.Countersignature `json:"countersignature"`
	}
	if err := json.Unmarshal(artifact, &envelope); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope.Certificate) == 0 {
		return Result{}, fmt.Errorf("%w: missing certificate", ErrMalformed)
	}

	var cert domain.Certificate
	if err := json.Unmarshal(envelope.Certificate, &cert); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validateCertificate(cert); err != nil {
		return Result{}, err
	}
	if envelope.Countersignature.Alg != "ed25519" {
		return Result{}, fmt.Errorf("%w: unsupported countersignature algorithm %q", ErrMalformed, envelope.Countersignature.Alg)
	}

	canonical, err := cryptoinfra.CanonicalizeJSON(envelope.Certificate)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := cryptoinfra.VerifyEncodedSignature(canonical, envelope.Countersignature.Value, opts.PlatformPublicKey); err != nil {
		return Result{}, ErrCountersignature
	}

	payloadCanonical, err := cryptoinfra.CanonicalizeJSON(cert.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid payload: %v", ErrMalformed, err)
	}
	if err := cryptoinfra.VerifyEncodedSignature(payloadCanonical, cert.Signature, opts.PlatformPublicKey); err != nil {
		return Result{}, ErrSignature
	}

	payload, err := domain.ParseSignablePayload(cert.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid payload: %v", ErrMalformed, err)
	}
	if payload.V != domain.SignablePayloadVersion {
		return Result{}, fmt.Errorf("%w: unsupported payload version %d", ErrMalformed, payload.V)
	}
	if payload.DocumentHash != cert.DocumentHash {
		return Result{}, fmt.Errorf("%w: document hash", ErrInconsistent)
	}
	if payload.SignerID != cert.Signer.ID {
		return Result{}, fmt.Errorf("%w: signer id", ErrInconsistent)
	}
	if payload.Timestamp != cert.SignedAt {
		return Result{}, fmt.Errorf("%w: signing time", ErrInconsistent)
	}

	signedAt, err := time.Parse(time.RFC3339Nano, cert.SignedAt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid signed_at: %v", ErrMalformed, err)
	}

	result := Result{
		CertificateID: cert.CertificateID,
		DocumentID:    cert.DocumentID,
		DocumentType:  cert.DocumentType,
		DocumentHash:  cert.DocumentHash,
		Signer: Signer{
			ID:    cert.Signer.ID,
			Name:  cert.Signer.Name,
			Email: cert.Signer.Email,
		},
		SignedAt: signedAt.UTC(),
		KeyID:    cert.KeyID,
		Nonce:    payload.Nonce,
	}

	if opts.Document != nil {
		if cryptoinfra.SHA256Hex(opts.Document) != cert.DocumentHash {
			return Result{}, ErrDocumentMismatch
		}
		match := true
		result.DocumentMatch = &match
	}
	return result, nil
}

func validateCertificate(cert domain.Certificate) error {
	if cert.V != domain.CertificateVersion {
		return fmt.Errorf("%w: unsupported certificate version %d", ErrMalformed, cert.V)
	}
	switch {
	case cert.CertificateID == "":
		return fmt.Errorf("%w: missing certificate_id", ErrMalformed)
	case cert.DocumentID == "":
		return fmt.Errorf("%w: missing document_id", ErrMalformed)
	case cert.DocumentHash == "":
		return fmt.Errorf("%w: missing document_hash", ErrMalformed)
	case cert.Signer.ID == "" || cert.Signer.Email == "":
		return fmt.Errorf("%w: missing signer identity", ErrMalformed)
	case cert.SignedAt == "":
		return fmt.Errorf("%w: missing signed_at", ErrMalformed)
	case cert.Signature == "":
		return fmt.Errorf("%w: missing signature", ErrMalformed)
	case len(cert.Payload) == 0:
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	return nil
}
