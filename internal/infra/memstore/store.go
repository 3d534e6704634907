// Package memstore is the in-memory implementation of the
// transactional store, used by tests and by dev mode when no database
// is configured. One mutex guards all state; WithTx snapshots the
// state up front and restores it when the transaction function fails,
// which gives callers real rollback semantics.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
	"signet/internal/usecase"
)

type Store struct {
	mu    sync.Mutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

type state struct {
	documents  map[string]domain.SignedDocument
	signatures map[string]domain.Signature
	sigOrder   map[string][]string
	sigByCert  map[string]string
	requests   map[string]domain.SignatureRequest
	events     map[string][]domain.AuditEvent
	seqs       map[string]int64
}

func newState() state {
	return state{
		documents:  make(map[string]domain.SignedDocument),
		signatures: make(map[string]domain.Signature),
		sigOrder:   make(map[string][]string),
		sigByCert:  make(map[string]string),
		requests:   make(map[string]domain.SignatureRequest),
		events:     make(map[string][]domain.AuditEvent),
		seqs:       make(map[string]int64),
	}
}

// clone copies every map one level deep. Stored values are replaced
// wholesale and slices only ever appended to, so sharing the backing
// arrays with the snapshot is safe.
func (s *state) clone() state {
	out := newState()
	for k, v := range s.documents {
		out.documents[k] = v
	}
	for k, v := range s.signatures {
		out.signatures[k] = v
	}
	for k, v := range s.sigOrder {
		out.sigOrder[k] = v
	}
	for k, v := range s.sigByCert {
		out.sigByCert[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.events {
		out.events[k] = v
	}
	for k, v := range s.seqs {
		out.seqs[k] = v
	}
	return out
}

func (s *Store) Documents() usecase.DocumentRepository {
	return documentRepo{repoBase{root: s}}
}

func (s *Store) Signatures() usecase.SignatureRepository {
	return signatureRepo{repoBase{root: s}}
}

func (s *Store) Requests() usecase.RequestRepository {
	return requestRepo{repoBase{root: s}}
}

func (s *Store) AuditEvents() usecase.AuditEventRepository {
	return auditRepo{repoBase{root: s}}
}

func (s *Store) WithTx(ctx context.Context, fn func(store usecase.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	if err := fn(&txStore{state: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// txStore serves repositories that skip locking; the root store holds
// the mutex for the whole transaction.
type txStore struct {
	state *state
}

func (t *txStore) Documents() usecase.DocumentRepository {
	return documentRepo{repoBase{state: t.state}}
}

func (t *txStore) Signatures() usecase.SignatureRepository {
	return signatureRepo{repoBase{state: t.state}}
}

func (t *txStore) Requests() usecase.RequestRepository {
	return requestRepo{repoBase{state: t.state}}
}

func (t *txStore) AuditEvents() usecase.AuditEventRepository {
	return auditRepo{repoBase{state: t.state}}
}

func (t *txStore) WithTx(ctx context.Context, fn func(store usecase.Store) error) error {
	// Nested transactions join the outer one.
	return fn(t)
}

type repoBase struct {
	root  *Store
	state *state
}

func (r repoBase) acquire() (*state, func()) {
	if r.root != nil {
		r.root.mu.Lock()
		return &r.root.state, r.root.mu.Unlock
	}
	return r.state, func() {}
}

type documentRepo struct{ repoBase }

func (r documentRepo) GetByID(ctx context.Context, documentID string) (*domain.SignedDocument, error) {
	st, release := r.acquire()
	defer release()
	doc, ok := st.documents[documentID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (r documentRepo) Create(ctx context.Context, doc domain.SignedDocument) error {
	st, release := r.acquire()
	defer release()
	if doc.DocumentID == "" {
		return errors.New("document id is required")
	}
	if _, exists := st.documents[doc.DocumentID]; exists {
		return fmt.Errorf("document %s already exists", doc.DocumentID)
	}
	st.documents[doc.DocumentID] = doc
	return nil
}

func (r documentRepo) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, lastSignedAt *time.Time) error {
	st, release := r.acquire()
	defer release()
	doc, ok := st.documents[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Status = status
	if lastSignedAt != nil {
		t := lastSignedAt.UTC()
		doc.LastSignedAt = &t
	}
	doc.UpdatedAt = time.Now().UTC()
	st.documents[documentID] = doc
	return nil
}

func (r documentRepo) SetSignedRef(ctx context.Context, documentID string, signedRef string) error {
	st, release := r.acquire()
	defer release()
	doc, ok := st.documents[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.SignedRef = signedRef
	doc.UpdatedAt = time.Now().UTC()
	st.documents[documentID] = doc
	return nil
}

type signatureRepo struct{ repoBase }

func (r signatureRepo) Create(ctx context.Context, sig domain.Signature) error {
	st, release := r.acquire()
	defer release()
	if sig.ID == "" || sig.SignedDocumentID == "" || sig.SignerID == "" {
		return errors.New("signature id, document id and signer id are required")
	}
	if _, exists := st.signatures[sig.ID]; exists {
		return fmt.Errorf("signature %s already exists", sig.ID)
	}
	if _, exists := st.sigByCert[sig.CertificateID]; exists {
		return fmt.Errorf("certificate id %s already exists", sig.CertificateID)
	}
	for _, id := range st.sigOrder[sig.SignedDocumentID] {
		existing := st.signatures[id]
		if !existing.Revoked && existing.SignerID == sig.SignerID {
			return domain.ErrDuplicateSignature
		}
	}
	st.signatures[sig.ID] = sig
	st.sigOrder[sig.SignedDocumentID] = append(st.sigOrder[sig.SignedDocumentID], sig.ID)
	st.sigByCert[sig.CertificateID] = sig.ID
	return nil
}

func (r signatureRepo) GetByID(ctx context.Context, signatureID string) (*domain.Signature, error) {
	st, release := r.acquire()
	defer release()
	sig, ok := st.signatures[signatureID]
	if !ok {
		return nil, domain.ErrSignatureNotFound
	}
	return &sig, nil
}

func (r signatureRepo) GetByCertificateID(ctx context.Context, certificateID string) (*domain.Signature, error) {
	st, release := r.acquire()
	defer release()
	id, ok := st.sigByCert[certificateID]
	if !ok {
		return nil, domain.ErrSignatureNotFound
	}
	sig := st.signatures[id]
	return &sig, nil
}

func (r signatureRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.Signature, error) {
	st, release := r.acquire()
	defer release()
	ids := st.sigOrder[documentID]
	out := make([]domain.Signature, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.signatures[id])
	}
	return out, nil
}

func (r signatureRepo) MarkRevoked(ctx context.Context, signatureID string, revokedAt time.Time, revokedBy, reason string) error {
	st, release := r.acquire()
	defer release()
	sig, ok := st.signatures[signatureID]
	if !ok {
		return domain.ErrSignatureNotFound
	}
	if sig.Revoked {
		return nil
	}
	at := revokedAt.UTC()
	sig.Revoked = true
	sig.RevokedAt = &at
	sig.RevokedBy = revokedBy
	sig.RevokedReason = reason
	st.signatures[signatureID] = sig
	return nil
}

type requestRepo struct{ repoBase }

func (r requestRepo) Create(ctx context.Context, req domain.SignatureRequest) error {
	st, release := r.acquire()
	defer release()
	if req.ID == "" || req.DocumentID == "" {
		return errors.New("request id and document id are required")
	}
	if _, exists := st.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	st.requests[req.ID] = req
	return nil
}

func (r requestRepo) GetByID(ctx context.Context, requestID string) (*domain.SignatureRequest, error) {
	st, release := r.acquire()
	defer release()
	req, ok := st.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return &req, nil
}

func (r requestRepo) GetLatestByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error) {
	st, release := r.acquire()
	defer release()
	var latest *domain.SignatureRequest
	for id := range st.requests {
		req := st.requests[id]
		if req.DocumentID != documentID {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) ||
			(req.CreatedAt.Equal(latest.CreatedAt) && req.ID > latest.ID) {
			latest = &req
		}
	}
	if latest == nil {
		return nil, domain.ErrRequestNotFound
	}
	return latest, nil
}

func (r requestRepo) GetOpenByDocument(ctx context.Context, documentID string) (*domain.SignatureRequest, error) {
	st, release := r.acquire()
	defer release()
	for id := range st.requests {
		req := st.requests[id]
		if req.DocumentID == documentID && req.Open() {
			return &req, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (r requestRepo) ListExpirable(ctx context.Context, now time.Time) ([]domain.SignatureRequest, error) {
	st, release := r.acquire()
	defer release()
	var out []domain.SignatureRequest
	for id := range st.requests {
		req := st.requests[id]
		if req.Open() && req.DeadlinePassed(now) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r requestRepo) UpdateStatus(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus, completedAt *time.Time) (bool, error) {
	st, release := r.acquire()
	defer release()
	req, ok := st.requests[requestID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if req.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	req.Status = to
	if completedAt != nil {
		t := completedAt.UTC()
		req.CompletedAt = &t
	}
	st.requests[requestID] = req
	return true, nil
}

type auditRepo struct{ repoBase }

func (r auditRepo) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	st, release := r.acquire()
	defer release()
	if event.DocumentID == "" || event.Action == "" || event.Actor == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)

	detailJSON, detailHash, err := cryptoinfra.AuditDetailBytes(event.Detail)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Detail = detailJSON
	event.PayloadHash = detailHash

	chain := st.events[event.DocumentID]
	event.Seq = st.seqs[event.DocumentID] + 1
	event.PrevEventHash = cryptoinfra.ZeroAuditHash
	if len(chain) > 0 {
		event.PrevEventHash = chain[len(chain)-1].EventHash
	}
	hash, err := cryptoinfra.AuditEventHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = hash

	st.events[event.DocumentID] = append(chain, event)
	st.seqs[event.DocumentID] = event.Seq
	return event, nil
}

func (r auditRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	st, release := r.acquire()
	defer release()
	chain := st.events[documentID]
	out := make([]domain.AuditEvent, len(chain))
	copy(out, chain)
	return out, nil
}
