package domain

import "time"

type DocumentStatus string

const (
	DocumentPending         DocumentStatus = "pending"
	DocumentPartiallySigned DocumentStatus = "partially_signed"
	DocumentSigned          DocumentStatus = "signed"
	DocumentExpired         DocumentStatus = "expired"
	DocumentRevoked         DocumentStatus = "revoked"
)

// SignedDocument tracks the signing state of one externally identified
// document. DocumentHash is set on first write and never changes; every
// later signature must be computed over bytes with the same hash.
type SignedDocument struct {
	DocumentID   string
	DocumentType string
	DocumentHash string
	OriginalRef  string
	SignedRef    string
	Status       DocumentStatus
	Metadata     map[string]any
	LastSignedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
