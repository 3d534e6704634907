package usecase

import (
	"context"
	"fmt"

	"signet/internal/domain"
)

type BulkSignItem struct {
	DocumentID   string
	DocumentType string
	// DocumentBytes may be omitted for known documents; the bytes are
	// then loaded from object storage via the stored original ref.
	DocumentBytes []byte
	Metadata      map[string]any
}

type BulkSignRequest struct {
	Items  []BulkSignItem
	Signer domain.SignerInfo
}

type BulkSignItemResult struct {
	DocumentID     string
	Signature      *domain.Signature
	DocumentStatus domain.DocumentStatus
	Err            error
}

type BulkSignResponse struct {
	Results   []BulkSignItemResult
	Succeeded int
}

// BulkSign applies the signing flow independently per document. Each
// item runs in its own transaction; one failure never rolls back or
// aborts the others.
type BulkSign struct {
	Sign    *SignDocument
	Store   Store
	Storage domain.ObjectStore
}

func (uc *BulkSign) Execute(ctx context.Context, req BulkSignRequest) (*BulkSignResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", domain.ErrInvalid)
	}
	resp := &BulkSignResponse{Results: make([]BulkSignItemResult, 0, len(req.Items))}
	for _, item := range req.Items {
		result := uc.signOne(ctx, item, req.Signer)
		if result.Err == nil {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (uc *BulkSign) signOne(ctx context.Context, item BulkSignItem, signer domain.SignerInfo) BulkSignItemResult {
	result := BulkSignItemResult{DocumentID: item.DocumentID}
	bytes := item.DocumentBytes
	if len(bytes) == 0 {
		loaded, err := uc.loadStored(ctx, item.DocumentID)
		if err != nil {
			result.Err = err
			return result
		}
		bytes = loaded
	}
	out, err := uc.Sign.Execute(ctx, SignDocumentRequest{
		DocumentID:    item.DocumentID,
		DocumentType:  item.DocumentType,
		DocumentBytes: bytes,
		Metadata:      item.Metadata,
		Signer:        signer,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Signature = &out.Signature
	result.DocumentStatus = out.DocumentStatus
	return result
}

func (uc *BulkSign) loadStored(ctx context.Context, documentID string) ([]byte, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalid)
	}
	doc, err := uc.Store.Documents().GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	bytes, err := uc.Storage.Get(ctx, doc.OriginalRef)
	if err != nil {
		return nil, fmt.Errorf("load original document: %w", err)
	}
	return bytes, nil
}
