package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"signet/internal/domain"
)

type GenerateCertificateRequest struct {
	SignatureID string
}

type GenerateCertificateResponse struct {
	Envelope domain.CertificateEnvelope
	// Artifact is the canonical encoding of the envelope. Ed25519 is
	// deterministic, so repeated calls yield byte-identical output.
	Artifact []byte
}

type GenerateCertificate struct {
	Store  Store
	Keys   domain.KeyManager
	Crypto CryptoService
}

func (uc *GenerateCertificate) Execute(ctx context.Context, req GenerateCertificateRequest) (*GenerateCertificateResponse, error) {
	if req.SignatureID == "" {
		return nil, fmt.Errorf("%w: signature id is required", domain.ErrInvalid)
	}
	sig, err := uc.Store.Signatures().GetByID(ctx, req.SignatureID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.Store.Documents().GetByID(ctx, sig.SignedDocumentID)
	if err != nil {
		return nil, err
	}

	cert := domain.Certificate{
		V:             domain.CertificateVersion,
		CertificateID: sig.CertificateID,
		DocumentID:    doc.DocumentID,
		DocumentType:  doc.DocumentType,
		DocumentHash:  doc.DocumentHash,
		Signer: domain.CertificateSigner{
			ID:    sig.SignerID,
			Name:  sig.SignerName,
			Email: sig.SignerEmail,
		},
		SignedAt:  sig.Timestamp.UTC().Format(time.RFC3339Nano),
		KeyID:     sig.KeyID,
		Signature: base64.StdEncoding.EncodeToString(sig.SignatureValue),
		Payload:   json.RawMessage(sig.PayloadBytes),
	}

	canonical, err := uc.Crypto.CanonicalizeCertificate(cert)
	if err != nil {
		return nil, err
	}
	countersig, err := uc.Keys.Sign(ctx, canonical)
	if err != nil {
		return nil, err
	}
	envelope := domain.CertificateEnvelope{
		Certificate: cert,
		Countersignature: domain.Countersignature{
			KeyID: uc.Keys.KeyID(),
			Alg:   "ed25519",
			Value: base64.StdEncoding.EncodeToString(countersig),
		},
	}
	artifact, err := uc.Crypto.CanonicalizeAny(envelope)
	if err != nil {
		return nil, err
	}
	return &GenerateCertificateResponse{Envelope: envelope, Artifact: artifact}, nil
}
