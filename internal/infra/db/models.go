package db

import "time"

type DocumentModel struct {
	ID           string `gorm:"type:text;primaryKey"`
	DocumentType string `gorm:"not null"`
	DocumentHash string `gorm:"index;not null"`
	OriginalRef  string
	SignedRef    string
	MetadataJSON []byte `gorm:"type:jsonb"`
	Status       string `gorm:"not null"`
	LastSignedAt *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (DocumentModel) TableName() string {
	return "signed_documents"
}

// SignatureModel keeps the signed payload as bytea, not jsonb: the
// stored bytes are what the signature verifies over and must round-trip
// without Postgres normalizing them.
type SignatureModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	SignedDocumentID string `gorm:"type:text;index;not null"`
	SignerID         string `gorm:"not null"`
	SignerName       string
	SignerEmail      string    `gorm:"not null"`
	SignatureValue   []byte    `gorm:"type:bytea;not null"`
	Payload          []byte    `gorm:"type:bytea;not null"`
	CertificateID    string    `gorm:"type:uuid;uniqueIndex;not null"`
	KeyID            string    `gorm:"not null"`
	Timestamp        time.Time `gorm:"index;not null"`
	IPAddress        string
	UserAgent        string
	Location         string
	Revoked          bool `gorm:"not null"`
	RevokedAt        *time.Time
	RevokedBy        string
	RevokedReason    string
	CreatedAt        time.Time `gorm:"not null"`
}

func (SignatureModel) TableName() string {
	return "signatures"
}

type RequestModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	DocumentID  string `gorm:"type:text;index;not null"`
	RequesterID string `gorm:"not null"`
	SignersJSON []byte `gorm:"type:jsonb;not null"`
	Status      string `gorm:"index;not null"`
	Deadline    *time.Time
	Sequential  bool `gorm:"not null"`
	Message     string
	CreatedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}

func (RequestModel) TableName() string {
	return "signature_requests"
}

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	DocumentID    string    `gorm:"type:text;uniqueIndex:idx_audit_events_document_seq,priority:1;not null"`
	Seq           int64     `gorm:"uniqueIndex:idx_audit_events_document_seq,priority:2;not null"`
	Actor         string    `gorm:"not null"`
	Action        string    `gorm:"not null"`
	DetailJSON    []byte    `gorm:"type:jsonb;not null"`
	PayloadHash   string    `gorm:"not null"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}

// DocumentAuditSeqModel is the per-document sequence counter the audit
// repository locks to serialize appends.
type DocumentAuditSeqModel struct {
	DocumentID string `gorm:"type:text;primaryKey"`
	Seq        int64  `gorm:"not null"`
}

func (DocumentAuditSeqModel) TableName() string {
	return "document_audit_seq"
}
