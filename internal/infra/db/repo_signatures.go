package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"signet/internal/domain"
)

type signatureRepo struct {
	db *gorm.DB
}

func (r *signatureRepo) Create(ctx context.Context, sig domain.Signature) error {
	model := signatureToModel(sig)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		// The partial unique index admits one non-revoked row per
		// (document, signer); a violation means a concurrent duplicate.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateSignature
		}
		return fmt.Errorf("create signature: %w", err)
	}
	return nil
}

func (r *signatureRepo) GetByID(ctx context.Context, signatureID string) (*domain.Signature, error) {
	var model SignatureModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", signatureID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSignatureNotFound
		}
		return nil, err
	}
	sig := signatureFromModel(model)
	return &sig, nil
}

func (r *signatureRepo) GetByCertificateID(ctx context.Context, certificateID string) (*domain.Signature, error) {
	var model SignatureModel
	err := r.db.WithContext(ctx).First(&model, "certificate_id = ?", certificateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSignatureNotFound
		}
		return nil, err
	}
	sig := signatureFromModel(model)
	return &sig, nil
}

func (r *signatureRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.Signature, error) {
	var models []SignatureModel
	err := r.db.WithContext(ctx).
		Where("signed_document_id = ?", documentID).
		Order("timestamp ASC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signature, 0, len(models))
	for _, model := range models {
		out = append(out, signatureFromModel(model))
	}
	return out, nil
}

func (r *signatureRepo) MarkRevoked(ctx context.Context, signatureID string, revokedAt time.Time, revokedBy, reason string) error {
	res := r.db.WithContext(ctx).Model(&SignatureModel{}).
		Where("id = ? AND NOT revoked", signatureID).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     revokedAt.UTC(),
			"revoked_by":     revokedBy,
			"revoked_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&SignatureModel{}).
			Where("id = ?", signatureID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrSignatureNotFound
		}
		// Already revoked; revocation is idempotent at this layer.
	}
	return nil
}

func signatureToModel(sig domain.Signature) SignatureModel {
	return SignatureModel{
		ID:               sig.ID,
		SignedDocumentID: sig.SignedDocumentID,
		SignerID:         sig.SignerID,
		SignerName:       sig.SignerName,
		SignerEmail:      sig.SignerEmail,
		SignatureValue:   copyBytes(sig.SignatureValue),
		Payload:          copyBytes(sig.PayloadBytes),
		CertificateID:    sig.CertificateID,
		KeyID:            sig.KeyID,
		Timestamp:        sig.Timestamp.UTC(),
		IPAddress:        sig.IPAddress,
		UserAgent:        sig.UserAgent,
		Location:         sig.Location,
		Revoked:          sig.Revoked,
		RevokedAt:        timePtrUTC(sig.RevokedAt),
		RevokedBy:        sig.RevokedBy,
		RevokedReason:    sig.RevokedReason,
		CreatedAt:        sig.Timestamp.UTC(),
	}
}

func signatureFromModel(model SignatureModel) domain.Signature {
	return domain.Signature{
		ID:               model.ID,
		SignedDocumentID: model.SignedDocumentID,
		SignerID:         model.SignerID,
		SignerName:       model.SignerName,
		SignerEmail:      model.SignerEmail,
		SignatureValue:   copyBytes(model.SignatureValue),
		PayloadBytes:     copyBytes(model.Payload),
		CertificateID:    model.CertificateID,
		KeyID:            model.KeyID,
		Timestamp:        model.Timestamp.UTC(),
		IPAddress:        model.IPAddress,
		UserAgent:        model.UserAgent,
		Location:         model.Location,
		Revoked:          model.Revoked,
		RevokedAt:        timePtrUTC(model.RevokedAt),
		RevokedBy:        model.RevokedBy,
		RevokedReason:    model.RevokedReason,
	}
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
