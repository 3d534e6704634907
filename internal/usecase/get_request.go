package usecase

import (
	"context"
	"fmt"

	"signet/internal/domain"
)

type GetSignatureRequestRequest struct {
	RequestID string
}

type SignerProgress struct {
	Email  string
	Name   string
	Order  int
	Signed bool
}

type GetSignatureRequestResponse struct {
	Request  domain.SignatureRequest
	Progress []SignerProgress
}

type GetSignatureRequest struct {
	Store Store
}

func (uc *GetSignatureRequest) Execute(ctx context.Context, req GetSignatureRequestRequest) (*GetSignatureRequestResponse, error) {
	if req.RequestID == "" {
		return nil, fmt.Errorf("%w: request id is required", domain.ErrInvalid)
	}
	request, err := uc.Store.Requests().GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	sigs, err := uc.Store.Signatures().ListByDocument(ctx, request.DocumentID)
	if err != nil {
		return nil, err
	}
	have := signedEmails(activeSignatures(sigs))
	progress := make([]SignerProgress, 0, len(request.Signers))
	for _, s := range request.Signers {
		progress = append(progress, SignerProgress{
			Email:  s.Email,
			Name:   s.Name,
			Order:  s.Order,
			Signed: have[signerKey(s.Email)],
		})
	}
	return &GetSignatureRequestResponse{Request: *request, Progress: progress}, nil
}
