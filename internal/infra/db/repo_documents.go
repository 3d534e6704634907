package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"signet/internal/domain"
)

type documentRepo struct {
	db *gorm.DB
}

func (r *documentRepo) GetByID(ctx context.Context, documentID string) (*domain.SignedDocument, error) {
	var model DocumentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", documentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return documentFromModel(model)
}

func (r *documentRepo) Create(ctx context.Context, doc domain.SignedDocument) error {
	model, err := documentToModel(doc)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, lastSignedAt *time.Time) error {
	updates := map[string]any{"status": string(status)}
	if lastSignedAt != nil {
		updates["last_signed_at"] = lastSignedAt.UTC()
	}
	res := r.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", documentID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) SetSignedRef(ctx context.Context, documentID string, signedRef string) error {
	res := r.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", documentID).
		Update("signed_ref", signedRef)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func documentToModel(doc domain.SignedDocument) (DocumentModel, error) {
	var metadataJSON []byte
	if doc.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(doc.Metadata)
		if err != nil {
			return DocumentModel{}, fmt.Errorf("marshal document metadata: %w", err)
		}
	}
	return DocumentModel{
		ID:           doc.DocumentID,
		DocumentType: doc.DocumentType,
		DocumentHash: doc.DocumentHash,
		OriginalRef:  doc.OriginalRef,
		SignedRef:    doc.SignedRef,
		MetadataJSON: metadataJSON,
		Status:       string(doc.Status),
		LastSignedAt: timePtrUTC(doc.LastSignedAt),
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}, nil
}

func documentFromModel(model DocumentModel) (*domain.SignedDocument, error) {
	var metadata map[string]any
	if len(model.MetadataJSON) > 0 {
		if err := json.Unmarshal(model.MetadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &domain.SignedDocument{
		DocumentID:   model.ID,
		DocumentType: model.DocumentType,
		DocumentHash: model.DocumentHash,
		OriginalRef:  model.OriginalRef,
		SignedRef:    model.SignedRef,
		Status:       domain.DocumentStatus(model.Status),
		Metadata:     metadata,
		LastSignedAt: timePtrUTC(model.LastSignedAt),
		CreatedAt:    model.CreatedAt.UTC(),
		UpdatedAt:    model.UpdatedAt.UTC(),
	}, nil
}

func timePtrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
