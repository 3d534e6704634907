package usecase

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"
)

// AuditEmitter shapes ledger events before they reach the repository.
// Instantiate it per transaction so appends ride inside the mutating
// operation's transaction.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.DocumentID == "" || event.Action == "" || event.Actor == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Detail == nil {
		event.Detail = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitRequestCreated(ctx context.Context, documentID, actor string, req domain.SignatureRequest) error {
	detail := map[string]any{
		"request_id":   req.ID,
		"signer_count": len(req.Signers),
		"sequential":   req.Sequential,
	}
	if req.Deadline != nil {
		detail["deadline"] = req.Deadline.UTC().Format(time.RFC3339Nano)
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      actor,
		Action:     domain.AuditRequestCreated,
		Detail:     detail,
	})
	return err
}

func (e *AuditEmitter) EmitSigned(ctx context.Context, documentID, actor string, signatureID, certificateID, signerEmail string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      actor,
		Action:     domain.AuditSigned,
		Detail: map[string]any{
			"signature_id":   signatureID,
			"certificate_id": certificateID,
			"signer_email":   signerEmail,
		},
	})
	return err
}

func (e *AuditEmitter) EmitRevoked(ctx context.Context, documentID, actor string, signatureID, certificateID, reason string) error {
	detail := map[string]any{
		"signature_id":   signatureID,
		"certificate_id": certificateID,
	}
	if reason != "" {
		detail["reason"] = reason
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      actor,
		Action:     domain.AuditRevoked,
		Detail:     detail,
	})
	return err
}

func (e *AuditEmitter) EmitRequestCancelled(ctx context.Context, documentID, actor, requestID string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      actor,
		Action:     domain.AuditRequestCancelled,
		Detail: map[string]any{
			"request_id": requestID,
		},
	})
	return err
}

func (e *AuditEmitter) EmitRequestExpired(ctx context.Context, documentID, requestID string, deadline time.Time) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      domain.AuditActorSystem,
		Action:     domain.AuditRequestExpired,
		Detail: map[string]any{
			"request_id": requestID,
			"deadline":   deadline.UTC().Format(time.RFC3339Nano),
		},
	})
	return err
}

func (e *AuditEmitter) EmitHashMismatch(ctx context.Context, documentID, actor string, expectedHash, providedHash string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		DocumentID: documentID,
		Actor:      actor,
		Action:     domain.AuditHashMismatch,
		Detail: map[string]any{
			"expected_hash": expectedHash,
			"provided_hash": providedHash,
		},
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
