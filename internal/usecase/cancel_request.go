package usecase

import (
	"context"
	"errors"
	"fmt"

	"signet/internal/domain"
)

type CancelSignatureRequestRequest struct {
	RequestID   string
	RequesterID string
}

type CancelSignatureRequestResponse struct {
	Request domain.SignatureRequest
}

type CancelSignatureRequest struct {
	Store    Store
	Notifier domain.Notifier
	Policy   PolicyEngine
	Clock    Clock
}

func (uc *CancelSignatureRequest) Execute(ctx context.Context, req CancelSignatureRequestRequest) (*CancelSignatureRequestResponse, error) {
	if req.RequestID == "" {
		return nil, fmt.Errorf("%w: request id is required", domain.ErrInvalid)
	}
	if req.RequesterID == "" {
		return nil, fmt.Errorf("%w: requester id is required", domain.ErrInvalid)
	}

	var out domain.SignatureRequest
	err := uc.Store.WithTx(ctx, func(tx Store) error {
		request, err := tx.Requests().GetByID(ctx, req.RequestID)
		if err != nil {
			return err
		}
		if request.RequesterID != req.RequesterID {
			return fmt.Errorf("%w: only the requester may cancel", domain.ErrUnauthorized)
		}
		if err := evaluatePolicy(ctx, uc.Policy, domain.PolicyInput{
			Action:     domain.PolicyActionCancel,
			Principal:  domain.Principal{ID: req.RequesterID},
			DocumentID: request.DocumentID,
			RequestID:  request.ID,
		}); err != nil {
			return err
		}
		if !request.Open() {
			return fmt.Errorf("%w: request is %s", domain.ErrRequestClosed, request.Status)
		}

		changed, err := tx.Requests().UpdateStatus(ctx, request.ID,
			[]domain.RequestStatus{domain.RequestPending, domain.RequestInProgress},
			domain.RequestCancelled, nil)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: request already closed", domain.ErrRequestClosed)
		}
		emitter := NewAuditEmitter(tx.AuditEvents(), uc.Clock)
		if err := emitter.EmitRequestCancelled(ctx, request.DocumentID, req.RequesterID, request.ID); err != nil {
			return err
		}

		request.Status = domain.RequestCancelled
		if err := uc.rederiveDocument(ctx, tx, request); err != nil {
			return err
		}
		out = *request
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.notifyCancelled(ctx, out)

	return &CancelSignatureRequestResponse{Request: out}, nil
}

// rederiveDocument refreshes the document status after the cancel.
// Collected signatures stay valid; a document that never got one may
// not even have a row yet.
func (uc *CancelSignatureRequest) rederiveDocument(ctx context.Context, tx Store, request *domain.SignatureRequest) error {
	_, err := tx.Documents().GetByID(ctx, request.DocumentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sigs, err := tx.Signatures().ListByDocument(ctx, request.DocumentID)
	if err != nil {
		return err
	}
	status := DeriveDocumentStatus(activeSignatures(sigs), countRevoked(sigs), request)
	return tx.Documents().UpdateStatus(ctx, request.DocumentID, status, nil)
}

func (uc *CancelSignatureRequest) notifyCancelled(ctx context.Context, request domain.SignatureRequest) {
	if uc.Notifier == nil {
		return
	}
	payload := map[string]any{
		"request_id":  request.ID,
		"document_id": request.DocumentID,
	}
	for _, s := range request.Signers {
		uc.Notifier.Notify(ctx, s.Email, domain.NotifyRequestCancelled, payload)
	}
}
