package usecase

import (
	"context"
	"errors"
	"fmt"

	"signet/internal/domain"
)

type GetDocumentRequest struct {
	DocumentID string
}

type GetDocumentResponse struct {
	Document   domain.SignedDocument
	Signatures []domain.Signature
	// Request is the latest request governing the document, nil for
	// ad-hoc documents.
	Request *domain.SignatureRequest
}

type GetDocument struct {
	Store Store
}

func (uc *GetDocument) Execute(ctx context.Context, req GetDocumentRequest) (*GetDocumentResponse, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalid)
	}
	doc, err := uc.Store.Documents().GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	sigs, err := uc.Store.Signatures().ListByDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	request, err := uc.Store.Requests().GetLatestByDocument(ctx, req.DocumentID)
	if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
		return nil, err
	}
	return &GetDocumentResponse{Document: *doc, Signatures: sigs, Request: request}, nil
}
