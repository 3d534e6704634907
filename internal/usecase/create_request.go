package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

type CreateSignatureRequestRequest struct {
	DocumentID  string
	RequesterID string
	Signers     []domain.RequestSigner
	Deadline    *time.Time
	Sequential  bool
	Message     string
}

type CreateSignatureRequestResponse struct {
	Request domain.SignatureRequest
}

type CreateSignatureRequest struct {
	Store    Store
	Notifier domain.Notifier
	Clock    Clock
}

func (uc *CreateSignatureRequest) Execute(ctx context.Context, req CreateSignatureRequestRequest) (*CreateSignatureRequestResponse, error) {
	now := uc.now().UTC().Truncate(time.Microsecond)
	signers, err := normalizeSigners(req.Signers)
	if err != nil {
		return nil, err
	}
	if req.DocumentID == "" || req.RequesterID == "" {
		return nil, fmt.Errorf("%w: document id and requester id are required", domain.ErrInvalid)
	}
	if req.Deadline != nil && !req.Deadline.After(now) {
		return nil, fmt.Errorf("%w: deadline must be in the future", domain.ErrInvalid)
	}

	request := domain.SignatureRequest{
		ID:          uuid.NewString(),
		DocumentID:  req.DocumentID,
		RequesterID: req.RequesterID,
		Signers:     signers,
		Status:      domain.RequestPending,
		Deadline:    req.Deadline,
		Sequential:  req.Sequential,
		Message:     req.Message,
		CreatedAt:   now,
	}

	err = uc.Store.WithTx(ctx, func(tx Store) error {
		open, err := tx.Requests().GetOpenByDocument(ctx, req.DocumentID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: request %s is still open", domain.ErrRequestExists, open.ID)
		}
		if err := tx.Requests().Create(ctx, request); err != nil {
			return err
		}
		emitter := NewAuditEmitter(tx.AuditEvents(), uc.Clock)
		return emitter.EmitRequestCreated(ctx, req.DocumentID, req.RequesterID, request)
	})
	if err != nil {
		return nil, err
	}

	uc.notifySigners(ctx, request)

	return &CreateSignatureRequestResponse{Request: request}, nil
}

// normalizeSigners validates the signer list and assigns order indices
// by list position.
func normalizeSigners(signers []domain.RequestSigner) ([]domain.RequestSigner, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: at least one signer is required", domain.ErrInvalid)
	}
	seen := make(map[string]bool, len(signers))
	out := make([]domain.RequestSigner, 0, len(signers))
	for i, s := range signers {
		key := signerKey(s.Email)
		if key == "" {
			return nil, fmt.Errorf("%w: signer %d has no email", domain.ErrInvalid, i)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate signer %s", domain.ErrInvalid, key)
		}
		seen[key] = true
		out = append(out, domain.RequestSigner{
			Email: s.Email,
			Name:  s.Name,
			Order: i,
		})
	}
	return out, nil
}

// notifySigners tells the first signer (sequential) or everyone
// (parallel) that their signature is wanted. Fire and forget.
func (uc *CreateSignatureRequest) notifySigners(ctx context.Context, request domain.SignatureRequest) {
	if uc.Notifier == nil {
		return
	}
	payload := map[string]any{
		"request_id":  request.ID,
		"document_id": request.DocumentID,
	}
	if request.Message != "" {
		payload["message"] = request.Message
	}
	if request.Sequential {
		if next := nextRequiredSigner(&request, nil); next != nil {
			uc.Notifier.Notify(ctx, next.Email, domain.NotifySignatureRequested, payload)
		}
		return
	}
	for _, s := range request.Signers {
		uc.Notifier.Notify(ctx, s.Email, domain.NotifySignatureRequested, payload)
	}
}

func (uc *CreateSignatureRequest) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}
