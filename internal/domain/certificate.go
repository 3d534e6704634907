package domain

import "encoding/json"

const CertificateVersion = 1

type CertificateSigner struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Certificate is a derived projection of one Signature and its
// SignedDocument. It is never stored; two generations for the same
// signature are byte-identical because every field is taken verbatim
// from the immutable records and serialization is canonical.
type Certificate struct {
	V             int               `json:"v"`
	CertificateID string            `json:"certificate_id"`
	DocumentID    string            `json:"document_id"`
	DocumentType  string            `json:"document_type,omitempty"`
	DocumentHash  string            `json:"document_hash"`
	Signer        CertificateSigner `json:"signer"`
	SignedAt      string            `json:"signed_at"`
	KeyID         string            `json:"key_id"`
	Signature     string            `json:"signature"`
	Payload       json.RawMessage   `json:"payload"`
}

type Countersignature struct {
	KeyID string `json:"key_id"`
	Alg   string `json:"alg"`
	Value string `json:"value"`
}

// CertificateEnvelope is the offline-verifiable artifact: the certificate
// plus the platform countersignature over its canonical bytes.
type CertificateEnvelope struct {
	Certificate      Certificate      `json:"certificate"`
	Countersignature Countersignature `json:"countersignature"`
}
