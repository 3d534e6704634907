package domain

import (
	"encoding/json"
	"time"
)

const SignablePayloadVersion = 1

// SignablePayload is the exact structured record a signature is computed
// over. It is serialized with canonical JSON and the resulting bytes are
// persisted verbatim, so verification never depends on re-deriving them.
type SignablePayload struct {
	V            int    `json:"v"`
	DocumentHash string `json:"document_hash"`
	SignerID     string `json:"signer_id"`
	Timestamp    string `json:"timestamp"`
	Nonce        string `json:"nonce"`
}

func ParseSignablePayload(raw []byte) (SignablePayload, error) {
	var payload SignablePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SignablePayload{}, err
	}
	return payload, nil
}

// SignerInfo is the acting principal as supplied by the identity
// collaborator, plus the request-level context recorded with a signature.
type SignerInfo struct {
	ID        string
	Name      string
	Email     string
	IPAddress string
	UserAgent string
	Location  string
}

// Signature is one signer's signature over one document. Everything but
// the revocation fields is immutable once written; at most one non-revoked
// row may exist per (signed_document_id, signer_id).
type Signature struct {
	ID               string
	SignedDocumentID string
	SignerID         string
	SignerName       string
	SignerEmail      string
	SignatureValue   []byte
	PayloadBytes     []byte
	CertificateID    string
	KeyID            string
	Timestamp        time.Time
	IPAddress        string
	UserAgent        string
	Location         string
	Revoked          bool
	RevokedAt        *time.Time
	RevokedBy        string
	RevokedReason    string
}
