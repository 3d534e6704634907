package usecase

import (
	"context"
	"fmt"
	"time"

	"signet/internal/domain"
)

type VerifyCertificateRequest struct {
	CertificateID string
}

type VerifyCertificateResponse struct {
	// Valid is CryptoValid AND not revoked.
	Valid       bool
	CryptoValid bool

	CertificateID string
	DocumentID    string
	DocumentHash  string
	Signer        domain.CertificateSigner
	SignedAt      time.Time
	KeyID         string

	Revoked       bool
	RevokedAt     *time.Time
	RevokedBy     string
	RevokedReason string
}

// VerifyCertificate serves the public verification endpoint. The
// cryptographic check runs against the persisted payload bytes and may
// be cached (the stored signature is immutable); the revocation flag is
// read fresh on every call.
type VerifyCertificate struct {
	Store    Store
	Keys     domain.KeyManager
	Cache    VerificationCache
	CacheTTL time.Duration
}

func (uc *VerifyCertificate) Execute(ctx context.Context, req VerifyCertificateRequest) (*VerifyCertificateResponse, error) {
	if req.CertificateID == "" {
		return nil, fmt.Errorf("%w: certificate id is required", domain.ErrInvalid)
	}
	sig, err := uc.Store.Signatures().GetByCertificateID(ctx, req.CertificateID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.Store.Documents().GetByID(ctx, sig.SignedDocumentID)
	if err != nil {
		return nil, err
	}

	cryptoValid := uc.cryptoValid(ctx, sig)

	return &VerifyCertificateResponse{
		Valid:         cryptoValid && !sig.Revoked,
		CryptoValid:   cryptoValid,
		CertificateID: sig.CertificateID,
		DocumentID:    doc.DocumentID,
		DocumentHash:  doc.DocumentHash,
		Signer: domain.CertificateSigner{
			ID:    sig.SignerID,
			Name:  sig.SignerName,
			Email: sig.SignerEmail,
		},
		SignedAt:      sig.Timestamp.UTC(),
		KeyID:         sig.KeyID,
		Revoked:       sig.Revoked,
		RevokedAt:     sig.RevokedAt,
		RevokedBy:     sig.RevokedBy,
		RevokedReason: sig.RevokedReason,
	}, nil
}

func (uc *VerifyCertificate) cryptoValid(ctx context.Context, sig *domain.Signature) bool {
	cacheKey := "certverify:" + sig.CertificateID
	if uc.Cache != nil {
		if valid, ok, err := uc.Cache.Get(ctx, cacheKey); err == nil && ok {
			return valid
		}
	}
	valid := uc.Keys.Verify(ctx, sig.PayloadBytes, sig.SignatureValue) == nil
	if uc.Cache != nil && uc.CacheTTL > 0 {
		_ = uc.Cache.Put(ctx, cacheKey, valid, uc.CacheTTL)
	}
	return valid
}
