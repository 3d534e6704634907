package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
)

type auditEventRepo struct {
	db *gorm.DB
}

// Append assigns the event its position in the document's chain and
// persists it. The per-document counter row is taken FOR UPDATE so two
// concurrent appends cannot claim the same seq or the same predecessor.
func (r *auditEventRepo) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.DocumentID == "" {
		return domain.AuditEvent{}, errors.New("audit event document_id is required")
	}
	if event.Action == "" {
		return domain.AuditEvent{}, errors.New("audit event action is required")
	}
	if event.Actor == "" {
		return domain.AuditEvent{}, errors.New("audit event actor is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)

	detailJSON, payloadHash, err := cryptoinfra.AuditDetailBytes(event.Detail)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("canonicalize audit detail: %w", err)
	}
	event.Detail = detailJSON
	event.PayloadHash = payloadHash

	var out domain.AuditEvent
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextAuditSeq(ctx, tx, event.DocumentID)
		if err != nil {
			return err
		}
		event.Seq = seq
		event.PrevEventHash = prevHash

		eventHash, err := cryptoinfra.AuditEventHash(event)
		if err != nil {
			return err
		}
		event.EventHash = eventHash

		model := AuditEventModel{
			ID:            event.ID,
			DocumentID:    event.DocumentID,
			Seq:           event.Seq,
			Actor:         event.Actor,
			Action:        string(event.Action),
			DetailJSON:    detailJSON,
			PayloadHash:   event.PayloadHash,
			PrevEventHash: event.PrevEventHash,
			EventHash:     event.EventHash,
			CreatedAt:     event.CreatedAt,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = event
		return nil
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return out, nil
}

func (r *auditEventRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		// jsonb does not preserve bytes; re-canonicalizing restores the
		// exact representation PayloadHash was computed over.
		canonical, err := cryptoinfra.CanonicalizeJSON(model.DetailJSON)
		if err != nil {
			return nil, fmt.Errorf("canonicalize stored audit detail: %w", err)
		}
		out = append(out, domain.AuditEvent{
			ID:            model.ID,
			DocumentID:    model.DocumentID,
			Seq:           model.Seq,
			Actor:         model.Actor,
			Action:        domain.AuditAction(model.Action),
			Detail:        canonical,
			PayloadHash:   model.PayloadHash,
			PrevEventHash: model.PrevEventHash,
			EventHash:     model.EventHash,
			CreatedAt:     model.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func nextAuditSeq(ctx context.Context, tx *gorm.DB, documentID string) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO document_audit_seq (document_id, seq) VALUES (?, 0) ON CONFLICT (document_id) DO NOTHING",
		documentID,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM document_audit_seq WHERE document_id = ? FOR UPDATE",
		documentID,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE document_audit_seq SET seq = ? WHERE document_id = ?",
		nextSeq,
		documentID,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := cryptoinfra.ZeroAuditHash
	if currentSeq > 0 {
		var prev AuditEventModel
		if err := tx.WithContext(ctx).
			Where("document_id = ? AND seq = ?", documentID, currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EventHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous event hash for document %s", documentID)
	}
	return nextSeq, prevHash, nil
}
