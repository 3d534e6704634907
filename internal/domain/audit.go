package domain

import "time"

const (
	AuditChainVersion = "audit_chain_v1"

	// AuditActorSystem is the actor recorded for events produced by
	// background jobs rather than an authenticated principal.
	AuditActorSystem = "system"
)

type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditSigned           AuditAction = "signed"
	AuditRevoked          AuditAction = "revoked"
	AuditRequestCancelled AuditAction = "request_cancelled"
	AuditRequestExpired   AuditAction = "request_expired"
	AuditHashMismatch     AuditAction = "hash_mismatch"
)

// AuditEvent is one entry in a document's append-only ledger. Events are
// ordered by per-document Seq and hash-chained: EventHash covers Seq,
// DocumentID, Actor, Action, PayloadHash, PrevEventHash and CreatedAt,
// with the genesis event chaining from the all-zero hash.
//
// Detail holds map[string]any on the way into Append; repositories
// serialize it canonically and hand back the canonical JSON bytes on
// reads, so PayloadHash stays checkable without re-deriving key order.
type AuditEvent struct {
	ID            string
	DocumentID    string
	Seq           int64
	Actor         string
	Action        AuditAction
	Detail        any
	PayloadHash   string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
