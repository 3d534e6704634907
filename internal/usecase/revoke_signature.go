package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signet/internal/domain"
)

type RevokeSignatureRequest struct {
	SignatureID  string
	Reason       string
	ActingUserID string
}

type RevokeSignatureResponse struct {
	Signature      domain.Signature
	DocumentStatus domain.DocumentStatus
	// AlreadyRevoked marks the idempotent no-op path.
	AlreadyRevoked bool
}

type RevokeSignature struct {
	Store  Store
	Policy PolicyEngine
	Clock  Clock
}

func (uc *RevokeSignature) Execute(ctx context.Context, req RevokeSignatureRequest) (*RevokeSignatureResponse, error) {
	if req.SignatureID == "" {
		return nil, fmt.Errorf("%w: signature id is required", domain.ErrInvalid)
	}
	if req.ActingUserID == "" {
		return nil, fmt.Errorf("%w: acting user id is required", domain.ErrInvalid)
	}

	now := uc.now().UTC().Truncate(time.Microsecond)
	var out RevokeSignatureResponse
	err := uc.Store.WithTx(ctx, func(tx Store) error {
		sig, err := tx.Signatures().GetByID(ctx, req.SignatureID)
		if err != nil {
			return err
		}
		if sig.SignerID != req.ActingUserID {
			return fmt.Errorf("%w: only the signer may revoke", domain.ErrUnauthorized)
		}
		doc, err := tx.Documents().GetByID(ctx, sig.SignedDocumentID)
		if err != nil {
			return err
		}
		if sig.Revoked {
			out = RevokeSignatureResponse{Signature: *sig, DocumentStatus: doc.Status, AlreadyRevoked: true}
			return nil
		}
		if err := evaluatePolicy(ctx, uc.Policy, domain.PolicyInput{
			Action:     domain.PolicyActionRevoke,
			Principal:  domain.Principal{ID: req.ActingUserID, Name: sig.SignerName, Email: sig.SignerEmail},
			DocumentID: sig.SignedDocumentID,
		}); err != nil {
			return err
		}

		if err := tx.Signatures().MarkRevoked(ctx, sig.ID, now, req.ActingUserID, req.Reason); err != nil {
			return err
		}
		emitter := NewAuditEmitter(tx.AuditEvents(), uc.Clock)
		if err := emitter.EmitRevoked(ctx, sig.SignedDocumentID, req.ActingUserID, sig.ID, sig.CertificateID, req.Reason); err != nil {
			return err
		}

		sigs, err := tx.Signatures().ListByDocument(ctx, sig.SignedDocumentID)
		if err != nil {
			return err
		}
		request, err := tx.Requests().GetLatestByDocument(ctx, sig.SignedDocumentID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return err
		}
		// Request status is monotonic: a completed request stays
		// completed, only the document status downgrades.
		status := DeriveDocumentStatus(activeSignatures(sigs), countRevoked(sigs), request)
		if err := tx.Documents().UpdateStatus(ctx, sig.SignedDocumentID, status, nil); err != nil {
			return err
		}

		revoked := *sig
		revoked.Revoked = true
		revoked.RevokedAt = &now
		revoked.RevokedBy = req.ActingUserID
		revoked.RevokedReason = req.Reason
		out = RevokeSignatureResponse{Signature: revoked, DocumentStatus: status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (uc *RevokeSignature) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}
