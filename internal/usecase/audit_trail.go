package usecase

import (
	"context"
	"fmt"

	"signet/internal/domain"
)

type GetAuditTrailRequest struct {
	DocumentID string
}

type GetAuditTrailResponse struct {
	Events []domain.AuditEvent
}

// GetAuditTrail returns the full ordered ledger for a document. Events
// can exist before the document row does (request_created), so an
// unknown document id yields an empty trail, not an error.
type GetAuditTrail struct {
	Store Store
}

func (uc *GetAuditTrail) Execute(ctx context.Context, req GetAuditTrailRequest) (*GetAuditTrailResponse, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalid)
	}
	events, err := uc.Store.AuditEvents().ListByDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	return &GetAuditTrailResponse{Events: events}, nil
}
