package usecase

import (
	"context"
	"time"

	"signet/internal/domain"
)

type Clock func() time.Time

type DocumentRepository interface {
	GetByID(ctx context.Context, documentID string) (*domain.SignedDocument, error)
	Create(ctx context.Context, doc domain.SignedDocument) error
	UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, lastSignedAt *time.Time) error
	SetSignedRef(ctx context.Context, documentID string, signedRef string) error
}

type SignatureRepository interface {
	Create(ctx context.Context, sig domain.Signature) error
	GetByID(ctx context.Context, signatureID string) (*domain.Signature, error)
	GetByCertificateID(ctx context.Context, certificateID string) (*domain.Signature, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Signature, error)
	MarkRevoked(ctx context.Context, signatureID string, revokedAt time.Time, revokedBy, reason string) error
}

type RequestRepository interface {
	Create(ctx context.Context, req domain.SignatureRequest) error
	GetByID(ctx context.Context, requestID string) (*domain.SignatureRequest, error)
	// GetLatestByDocument returns the most recently created request for
	// the document regardless of status; ErrRequestNotFound when none.
	GetLatestByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error)
	GetOpenByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error)
	ListExpirable(ctx context.Context, now time.Time) ([]domain.SignatureRequest, error)
	// UpdateStatus transitions the request to `to` only while its
	// current status is in `from`, reporting whether a row changed.
	UpdateStatus(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus, completedAt *time.Time) (bool, error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error)
}

// Store bundles the four repositories behind one transactional
// boundary. WithTx runs fn against a store whose repositories share a
// transaction; returning an error rolls everything back.
type Store interface {
	Documents() DocumentRepository
	Signatures() SignatureRepository
	Requests() RequestRepository
	AuditEvents() AuditEventRepository
	WithTx(ctx context.Context, fn func(store Store) error) error
}

type CryptoService interface {
	CanonicalizePayload(p domain.SignablePayload) ([]byte, error)
	CanonicalizeCertificate(cert domain.Certificate) ([]byte, error)
	CanonicalizeAny(payload any) ([]byte, error)
	VerifySignature(payload, sig, pubKey []byte) error
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

// VerificationCache memoizes the cryptographic validity of a
// certificate's signature. Revocation state is never cached.
type VerificationCache interface {
	Get(ctx context.Context, key string) (valid bool, ok bool, err error)
	Put(ctx context.Context, key string, valid bool, ttl time.Duration) error
}
