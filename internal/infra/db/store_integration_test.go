//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"signet/internal/domain"
	"signet/internal/usecase"
)

func TestDocumentRepository_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Documents()
	ctx := context.Background()

	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	doc := domain.SignedDocument{
		DocumentID:   "doc-rt-1",
		DocumentType: "contract",
		DocumentHash: strings.Repeat("ab", 32),
		OriginalRef:  strings.Repeat("cd", 32),
		Status:       domain.DocumentPending,
		Metadata:     map[string]any{"source": "upload", "pages": float64(3)},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	got, err := repo.GetByID(ctx, "doc-rt-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.DocumentType != "contract" || got.DocumentHash != doc.DocumentHash {
		t.Fatalf("document mismatch: %+v", got)
	}
	if got.Metadata["source"] != "upload" || got.Metadata["pages"] != float64(3) {
		t.Fatalf("metadata mismatch: %v", got.Metadata)
	}
	if got.Status != domain.DocumentPending {
		t.Fatalf("status = %s", got.Status)
	}

	signedAt := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	if err := repo.UpdateStatus(ctx, "doc-rt-1", domain.DocumentSigned, &signedAt); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := repo.SetSignedRef(ctx, "doc-rt-1", strings.Repeat("ef", 32)); err != nil {
		t.Fatalf("set signed ref: %v", err)
	}

	got, err = repo.GetByID(ctx, "doc-rt-1")
	if err != nil {
		t.Fatalf("get document after update: %v", err)
	}
	if got.Status != domain.DocumentSigned {
		t.Fatalf("status = %s, want signed", got.Status)
	}
	if got.LastSignedAt == nil || !got.LastSignedAt.Equal(signedAt) {
		t.Fatalf("last signed at = %v", got.LastSignedAt)
	}
	if got.SignedRef != strings.Repeat("ef", 32) {
		t.Fatalf("signed ref = %s", got.SignedRef)
	}

	if _, err := repo.GetByID(ctx, "absent"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("get absent = %v, want ErrDocumentNotFound", err)
	}
	if err := repo.UpdateStatus(ctx, "absent", domain.DocumentSigned, nil); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("update absent = %v, want ErrDocumentNotFound", err)
	}
}

func TestSignatureRepository_ActiveUniquenessAndResign(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Signatures()
	ctx := context.Background()

	first := testSignature("doc-uniq", "signer-1", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first signature: %v", err)
	}

	dup := testSignature("doc-uniq", "signer-1", time.Date(2026, 2, 1, 10, 5, 0, 0, time.UTC))
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrDuplicateSignature) {
		t.Fatalf("duplicate create = %v, want ErrDuplicateSignature", err)
	}

	revokedAt := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	if err := repo.MarkRevoked(ctx, first.ID, revokedAt, "signer-1", "fraud"); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}
	// Idempotent second revocation.
	if err := repo.MarkRevoked(ctx, first.ID, revokedAt, "signer-1", "fraud"); err != nil {
		t.Fatalf("second mark revoked: %v", err)
	}
	if err := repo.MarkRevoked(ctx, uuid.NewString(), revokedAt, "x", "y"); !errors.Is(err, domain.ErrSignatureNotFound) {
		t.Fatalf("revoke unknown = %v, want ErrSignatureNotFound", err)
	}

	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get revoked signature: %v", err)
	}
	if !got.Revoked || got.RevokedBy != "signer-1" || got.RevokedReason != "fraud" {
		t.Fatalf("revocation fields: %+v", got)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("revoked at = %v", got.RevokedAt)
	}

	resign := testSignature("doc-uniq", "signer-1", time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, resign); err != nil {
		t.Fatalf("re-sign after revocation: %v", err)
	}

	byCert, err := repo.GetByCertificateID(ctx, resign.CertificateID)
	if err != nil {
		t.Fatalf("get by certificate id: %v", err)
	}
	if byCert.ID != resign.ID {
		t.Fatalf("certificate lookup = %s, want %s", byCert.ID, resign.ID)
	}
	if string(byCert.PayloadBytes) != string(resign.PayloadBytes) {
		t.Fatal("payload bytes did not round-trip")
	}
	if _, err := repo.GetByCertificateID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrSignatureNotFound) {
		t.Fatalf("unknown certificate = %v, want ErrSignatureNotFound", err)
	}
}

func TestSignatureRepository_ListOrdering(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Signatures()
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	third := testSignature("doc-order", "signer-3", base.Add(2*time.Hour))
	first := testSignature("doc-order", "signer-1", base)
	second := testSignature("doc-order", "signer-2", base.Add(time.Hour))
	for _, sig := range []domain.Signature{third, first, second} {
		if err := repo.Create(ctx, sig); err != nil {
			t.Fatalf("create signature: %v", err)
		}
	}

	list, err := repo.ListByDocument(ctx, "doc-order")
	if err != nil {
		t.Fatalf("list signatures: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].SignerID != "signer-1" || list[1].SignerID != "signer-2" || list[2].SignerID != "signer-3" {
		t.Fatalf("order = %s, %s, %s", list[0].SignerID, list[1].SignerID, list[2].SignerID)
	}
}

func TestRequestRepository_ConditionalUpdate(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Requests()
	ctx := context.Background()

	req := domain.SignatureRequest{
		ID:          uuid.NewString(),
		DocumentID:  "doc-req",
		RequesterID: "requester-1",
		Signers: []domain.RequestSigner{
			{Email: "a@example.com", Order: 0},
			{Email: "b@example.com", Name: "Bee", Order: 1},
		},
		Status:     domain.RequestPending,
		Sequential: true,
		Message:    "please sign",
		CreatedAt:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	open, err := repo.GetOpenByDocument(ctx, "doc-req")
	if err != nil {
		t.Fatalf("get open request: %v", err)
	}
	if open.ID != req.ID || len(open.Signers) != 2 || open.Signers[1].Name != "Bee" {
		t.Fatalf("open request mismatch: %+v", open)
	}

	completedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	changed, err := repo.UpdateStatus(ctx, req.ID,
		[]domain.RequestStatus{domain.RequestPending, domain.RequestInProgress},
		domain.RequestCompleted, &completedAt)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !changed {
		t.Fatal("expected first transition to apply")
	}

	changed, err = repo.UpdateStatus(ctx, req.ID,
		[]domain.RequestStatus{domain.RequestPending, domain.RequestInProgress},
		domain.RequestCancelled, nil)
	if err != nil {
		t.Fatalf("second update status: %v", err)
	}
	if changed {
		t.Fatal("expected conditional update to miss a completed request")
	}

	if _, err := repo.GetOpenByDocument(ctx, "doc-req"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("open after completion = %v, want ErrRequestNotFound", err)
	}

	latest, err := repo.GetLatestByDocument(ctx, "doc-req")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.Status != domain.RequestCompleted {
		t.Fatalf("latest status = %s", latest.Status)
	}
	if latest.CompletedAt == nil || !latest.CompletedAt.Equal(completedAt) {
		t.Fatalf("completed at = %v", latest.CompletedAt)
	}
}

func TestRequestRepository_ListExpirable(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Requests()
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := domain.SignatureRequest{
		ID: uuid.NewString(), DocumentID: "doc-exp-1", RequesterID: "r",
		Signers:   []domain.RequestSigner{{Email: "a@example.com"}},
		Status:    domain.RequestInProgress,
		Deadline:  &past,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	upcoming := domain.SignatureRequest{
		ID: uuid.NewString(), DocumentID: "doc-exp-2", RequesterID: "r",
		Signers:   []domain.RequestSigner{{Email: "a@example.com"}},
		Status:    domain.RequestPending,
		Deadline:  &future,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	cancelled := domain.SignatureRequest{
		ID: uuid.NewString(), DocumentID: "doc-exp-3", RequesterID: "r",
		Signers:   []domain.RequestSigner{{Email: "a@example.com"}},
		Status:    domain.RequestCancelled,
		Deadline:  &past,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	openEnded := domain.SignatureRequest{
		ID: uuid.NewString(), DocumentID: "doc-exp-4", RequesterID: "r",
		Signers:   []domain.RequestSigner{{Email: "a@example.com"}},
		Status:    domain.RequestPending,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	for _, req := range []domain.SignatureRequest{overdue, upcoming, cancelled, openEnded} {
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}

	expirable, err := repo.ListExpirable(ctx, now)
	if err != nil {
		t.Fatalf("list expirable: %v", err)
	}
	if len(expirable) != 1 || expirable[0].ID != overdue.ID {
		t.Fatalf("expirable = %+v, want only the overdue request", expirable)
	}
}

func TestAuditEventRepository_ChainAndVerify(t *testing.T) {
	store := setupTestStore(t)
	repo := store.AuditEvents()
	ctx := context.Background()

	var last domain.AuditEvent
	for i := 0; i < 3; i++ {
		event, err := repo.Append(ctx, domain.AuditEvent{
			DocumentID: "doc-chain",
			Actor:      "signer-1",
			Action:     domain.AuditSigned,
			Detail:     map[string]any{"index": i},
			CreatedAt:  time.Date(2026, 2, 1, 10+i, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append event %d: %v", i, err)
		}
		if event.Seq != int64(i+1) {
			t.Fatalf("seq = %d, want %d", event.Seq, i+1)
		}
		if i == 0 && event.PrevEventHash != strings.Repeat("0", 64) {
			t.Fatalf("genesis prev hash = %s", event.PrevEventHash)
		}
		if i > 0 && event.PrevEventHash != last.EventHash {
			t.Fatalf("prev hash = %s, want %s", event.PrevEventHash, last.EventHash)
		}
		last = event
	}

	// Another document starts its own chain.
	other, err := repo.Append(ctx, domain.AuditEvent{
		DocumentID: "doc-chain-2",
		Actor:      domain.AuditActorSystem,
		Action:     domain.AuditRequestExpired,
	})
	if err != nil {
		t.Fatalf("append other document event: %v", err)
	}
	if other.Seq != 1 || other.PrevEventHash != strings.Repeat("0", 64) {
		t.Fatalf("independent chain: seq=%d prev=%s", other.Seq, other.PrevEventHash)
	}

	if err := usecase.VerifyDocumentAuditChain(ctx, repo, "doc-chain"); err != nil {
		t.Fatalf("verify chain: %v", err)
	}

	events, err := repo.ListByDocument(ctx, "doc-chain")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	detail, ok := events[1].Detail.([]byte)
	if !ok {
		t.Fatalf("detail type = %T, want []byte", events[1].Detail)
	}
	if string(detail) != `{"index":1}` {
		t.Fatalf("detail = %s", detail)
	}
}

func TestAuditEventsAppendOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	event, err := store.AuditEvents().Append(ctx, domain.AuditEvent{
		DocumentID: "doc-ro",
		Actor:      domain.AuditActorSystem,
		Action:     domain.AuditRequestCreated,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	err = store.db.WithContext(ctx).
		Exec("UPDATE audit_events SET actor = ? WHERE id = ?", "tampered", event.ID).Error
	if err == nil {
		t.Fatal("expected update to fail on append-only table")
	} else if !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only error, got %v", err)
	}

	err = store.db.WithContext(ctx).
		Exec("DELETE FROM audit_events WHERE id = ?", event.ID).Error
	if err == nil {
		t.Fatal("expected delete to fail on append-only table")
	} else if !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only error, got %v", err)
	}
}

func TestStoreWithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx usecase.Store) error {
		doc := domain.SignedDocument{
			DocumentID:   "doc-tx",
			DocumentType: "contract",
			DocumentHash: strings.Repeat("aa", 32),
			Status:       domain.DocumentPending,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := tx.Documents().Create(ctx, doc); err != nil {
			return err
		}
		if _, err := tx.AuditEvents().Append(ctx, domain.AuditEvent{
			DocumentID: "doc-tx",
			Actor:      "signer-1",
			Action:     domain.AuditSigned,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx = %v, want boom", err)
	}

	if _, err := store.Documents().GetByID(ctx, "doc-tx"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("document survived rollback: %v", err)
	}
	events, err := store.AuditEvents().ListByDocument(ctx, "doc-tx")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events survived rollback: %d", len(events))
	}

	// The seq counter also rolled back; the next append starts at 1.
	event, err := store.AuditEvents().Append(ctx, domain.AuditEvent{
		DocumentID: "doc-tx",
		Actor:      "signer-1",
		Action:     domain.AuditSigned,
	})
	if err != nil {
		t.Fatalf("append after rollback: %v", err)
	}
	if event.Seq != 1 {
		t.Fatalf("seq after rollback = %d, want 1", event.Seq)
	}
}

func testSignature(documentID, signerID string, ts time.Time) domain.Signature {
	return domain.Signature{
		ID:               uuid.NewString(),
		SignedDocumentID: documentID,
		SignerID:         signerID,
		SignerName:       "Signer " + signerID,
		SignerEmail:      signerID + "@example.com",
		SignatureValue:   []byte("sig-" + signerID),
		PayloadBytes:     []byte(`{"document_hash":"abc","nonce":"n","signer_id":"` + signerID + `","timestamp":"t","v":1}`),
		CertificateID:    uuid.NewString(),
		KeyID:            "key-1",
		Timestamp:        ts,
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	lockTestDB(t, store.db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resetDB(t, store.db)
	return store
}

// Serializes integration tests against a shared database.
func lockTestDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(643711200)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(643711200)")
		_ = conn.Close()
	})
}

func resetDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(`
		TRUNCATE signed_documents,
			signatures,
			signature_requests,
			audit_events,
			document_audit_seq
		RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
