package crypto

import (
	"errors"
	"time"

	"signet/internal/domain"
)

// AuditDetailBytes canonicalizes an event's detail and returns the
// bytes plus their hash. Both store implementations persist exactly
// these bytes so the ledger stays verifiable after a read.
func AuditDetailBytes(detail any) ([]byte, string, error) {
	if detail == nil {
		detail = map[string]any{}
	}
	canonical, err := CanonicalizeAny(detail)
	if err != nil {
		return nil, "", err
	}
	return canonical, SHA256Hex(canonical), nil
}

// AuditEventHash computes the chain hash linking an event to its
// predecessor. Seq, PayloadHash, PrevEventHash and CreatedAt must be
// final before calling.
func AuditEventHash(event domain.AuditEvent) (string, error) {
	if event.DocumentID == "" || event.Action == "" || event.Actor == "" {
		return "", errors.New("audit event missing document_id, action or actor")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	payload := map[string]any{
		"v":               domain.AuditChainVersion,
		"document_id":     event.DocumentID,
		"seq":             event.Seq,
		"actor":           event.Actor,
		"action":          string(event.Action),
		"payload_hash":    event.PayloadHash,
		"prev_event_hash": event.PrevEventHash,
		"created_at":      event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}

// ZeroAuditHash is the prev hash of each document's genesis event.
const ZeroAuditHash = "0000000000000000000000000000000000000000000000000000000000000000"
