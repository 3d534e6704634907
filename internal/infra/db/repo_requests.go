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

type requestRepo struct {
	db *gorm.DB
}

func (r *requestRepo) Create(ctx context.Context, req domain.SignatureRequest) error {
	model, err := requestToModel(req)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create signature request: %w", err)
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, requestID string) (*domain.SignatureRequest, error) {
	var model RequestModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return requestFromModel(model)
}

func (r *requestRepo) GetLatestByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error) {
	var model RequestModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return requestFromModel(model)
}

func (r *requestRepo) GetOpenByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error) {
	var model RequestModel
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND status IN ?", documentID, openStatuses()).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return requestFromModel(model)
}

func (r *requestRepo) ListExpirable(ctx context.Context, now time.Time) ([]domain.SignatureRequest, error) {
	var models []RequestModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND deadline IS NOT NULL AND deadline < ?", openStatuses(), now.UTC()).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SignatureRequest, 0, len(models))
	for _, model := range models {
		req, err := requestFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

func (r *requestRepo) UpdateStatus(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus, completedAt *time.Time) (bool, error) {
	updates := map[string]any{"status": string(to)}
	if completedAt != nil {
		updates["completed_at"] = completedAt.UTC()
	}
	fromStrings := make([]string, 0, len(from))
	for _, status := range from {
		fromStrings = append(fromStrings, string(status))
	}
	res := r.db.WithContext(ctx).Model(&RequestModel{}).
		Where("id = ? AND status IN ?", requestID, fromStrings).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func openStatuses() []string {
	return []string{string(domain.RequestPending), string(domain.RequestInProgress)}
}

func requestToModel(req domain.SignatureRequest) (RequestModel, error) {
	signersJSON, err := json.Marshal(req.Signers)
	if err != nil {
		return RequestModel{}, fmt.Errorf("marshal request signers: %w", err)
	}
	return RequestModel{
		ID:          req.ID,
		DocumentID:  req.DocumentID,
		RequesterID: req.RequesterID,
		SignersJSON: signersJSON,
		Status:      string(req.Status),
		Deadline:    timePtrUTC(req.Deadline),
		Sequential:  req.Sequential,
		Message:     req.Message,
		CreatedAt:   req.CreatedAt.UTC(),
		CompletedAt: timePtrUTC(req.CompletedAt),
	}, nil
}

func requestFromModel(model RequestModel) (*domain.SignatureRequest, error) {
	var signers []domain.RequestSigner
	if err := json.Unmarshal(model.SignersJSON, &signers); err != nil {
		return nil, fmt.Errorf("unmarshal request signers: %w", err)
	}
	return &domain.SignatureRequest{
		ID:          model.ID,
		DocumentID:  model.DocumentID,
		RequesterID: model.RequesterID,
		Signers:     signers,
		Status:      domain.RequestStatus(model.Status),
		Deadline:    timePtrUTC(model.Deadline),
		Sequential:  model.Sequential,
		Message:     model.Message,
		CreatedAt:   model.CreatedAt.UTC(),
		CompletedAt: timePtrUTC(model.CompletedAt),
	}, nil
}
