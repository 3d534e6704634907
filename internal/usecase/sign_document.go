package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

type SignDocumentRequest struct {
	DocumentID    string
	DocumentType  string
	DocumentBytes []byte
	Metadata      map[string]any
	Signer        domain.SignerInfo
}

type SignDocumentResponse struct {
	Signature      domain.Signature
	DocumentStatus domain.DocumentStatus
	// RequestStatus is empty when no request governs the document.
	RequestStatus domain.RequestStatus
}

type SignDocument struct {
	Store    Store
	Keys     domain.KeyManager
	Storage  domain.ObjectStore
	Crypto   CryptoService
	Notifier domain.Notifier
	Policy   PolicyEngine
	Clock    Clock
}

func (uc *SignDocument) Execute(ctx context.Context, req SignDocumentRequest) (*SignDocumentResponse, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalid)
	}
	if req.Signer.ID == "" || req.Signer.Email == "" {
		return nil, fmt.Errorf("%w: signer id and email are required", domain.ErrInvalid)
	}
	if len(req.DocumentBytes) == 0 {
		return nil, fmt.Errorf("%w: document bytes are required", domain.ErrInvalid)
	}
	if err := evaluatePolicy(ctx, uc.Policy, domain.PolicyInput{
		Action:       domain.PolicyActionSign,
		Principal:    domain.Principal{ID: req.Signer.ID, Name: req.Signer.Name, Email: req.Signer.Email},
		DocumentID:   req.DocumentID,
		DocumentType: req.DocumentType,
	}); err != nil {
		return nil, err
	}

	// Truncated to microseconds so the timestamp inside the signed
	// payload survives a round trip through the database unchanged.
	now := uc.now().UTC().Truncate(time.Microsecond)
	documentHash := sha256Hex(req.DocumentBytes)

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	payload := domain.SignablePayload{
		V:            domain.SignablePayloadVersion,
		DocumentHash: documentHash,
		SignerID:     req.Signer.ID,
		Timestamp:    now.Format(time.RFC3339Nano),
		Nonce:        nonce,
	}
	payloadBytes, err := uc.Crypto.CanonicalizePayload(payload)
	if err != nil {
		return nil, err
	}
	signatureValue, err := uc.Keys.Sign(ctx, payloadBytes)
	if err != nil {
		return nil, err
	}

	sig := domain.Signature{
		ID:               uuid.NewString(),
		SignedDocumentID: req.DocumentID,
		SignerID:         req.Signer.ID,
		SignerName:       req.Signer.Name,
		SignerEmail:      req.Signer.Email,
		SignatureValue:   signatureValue,
		PayloadBytes:     payloadBytes,
		CertificateID:    uuid.NewString(),
		KeyID:            uc.Keys.KeyID(),
		Timestamp:        now,
		IPAddress:        req.Signer.IPAddress,
		UserAgent:        req.Signer.UserAgent,
		Location:         req.Signer.Location,
	}

	var (
		storedHash string
		docStatus  domain.DocumentStatus
		reqStatus  domain.RequestStatus
		request    *domain.SignatureRequest
		validAfter []domain.Signature
	)
	txErr := uc.Store.WithTx(ctx, func(tx Store) error {
		doc, err := tx.Documents().GetByID(ctx, req.DocumentID)
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			return err
		}
		if doc == nil {
			ref, err := uc.Storage.Put(ctx, req.DocumentID, req.DocumentBytes)
			if err != nil {
				return fmt.Errorf("store original document: %w", err)
			}
			created := domain.SignedDocument{
				DocumentID:   req.DocumentID,
				DocumentType: req.DocumentType,
				DocumentHash: documentHash,
				OriginalRef:  ref,
				Status:       domain.DocumentPending,
				Metadata:     req.Metadata,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Documents().Create(ctx, created); err != nil {
				return err
			}
			doc = &created
		} else if doc.DocumentHash != documentHash {
			storedHash = doc.DocumentHash
			return domain.ErrHashMismatch
		}

		sigs, err := tx.Signatures().ListByDocument(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		valid := activeSignatures(sigs)
		for _, existing := range valid {
			if existing.SignerID == req.Signer.ID {
				return domain.ErrDuplicateSignature
			}
		}

		request, err = tx.Requests().GetLatestByDocument(ctx, req.DocumentID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return err
		}
		if request != nil {
			if err := checkRequestGate(request, req.Signer, valid, now); err != nil {
				return err
			}
		}

		if err := tx.Signatures().Create(ctx, sig); err != nil {
			return err
		}
		emitter := NewAuditEmitter(tx.AuditEvents(), uc.Clock)
		if err := emitter.EmitSigned(ctx, req.DocumentID, req.Signer.ID, sig.ID, sig.CertificateID, sig.SignerEmail); err != nil {
			return err
		}

		valid = append(valid, sig)
		validAfter = valid
		docStatus = DeriveDocumentStatus(valid, countRevoked(sigs), request)
		if err := tx.Documents().UpdateStatus(ctx, req.DocumentID, docStatus, &now); err != nil {
			return err
		}

		if request != nil && request.Open() {
			reqStatus, err = uc.advanceRequest(ctx, tx, request, valid, now)
			if err != nil {
				return err
			}
		} else if request != nil {
			reqStatus = request.Status
		}

		if docStatus == domain.DocumentSigned {
			if err := uc.writeSignedBundle(ctx, tx, doc, valid); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrHashMismatch) {
			uc.recordTamper(ctx, req.DocumentID, req.Signer.ID, storedHash, documentHash)
		}
		return nil, txErr
	}

	uc.notifyAfterSign(ctx, req.DocumentID, request, reqStatus, validAfter)

	return &SignDocumentResponse{
		Signature:      sig,
		DocumentStatus: docStatus,
		RequestStatus:  reqStatus,
	}, nil
}

// checkRequestGate decides whether the governing request admits this
// signature. Completed requests still accept ad-hoc extra signatures;
// cancelled ones do not.
func checkRequestGate(request *domain.SignatureRequest, signer domain.SignerInfo, valid []domain.Signature, now time.Time) error {
	switch request.Status {
	case domain.RequestExpired:
		return domain.ErrRequestExpired
	case domain.RequestCancelled:
		return fmt.Errorf("%w: request %s is cancelled", domain.ErrRequestClosed, request.ID)
	case domain.RequestCompleted:
		return nil
	}
	if request.DeadlinePassed(now) {
		return domain.ErrRequestExpired
	}
	if request.Sequential {
		return checkSequentialOrder(request, signer, valid)
	}
	return nil
}

func (uc *SignDocument) advanceRequest(ctx context.Context, tx Store, request *domain.SignatureRequest, valid []domain.Signature, now time.Time) (domain.RequestStatus, error) {
	open := []domain.RequestStatus{domain.RequestPending, domain.RequestInProgress}
	if requestCovered(request, valid) {
		if _, err := tx.Requests().UpdateStatus(ctx, request.ID, open, domain.RequestCompleted, &now); err != nil {
			return "", err
		}
		return domain.RequestCompleted, nil
	}
	if request.Status == domain.RequestPending {
		if _, err := tx.Requests().UpdateStatus(ctx, request.ID, []domain.RequestStatus{domain.RequestPending}, domain.RequestInProgress, nil); err != nil {
			return "", err
		}
	}
	return domain.RequestInProgress, nil
}

type signedBundle struct {
	Document   bundleDocument    `json:"document"`
	Signatures []bundleSignature `json:"signatures"`
}

type bundleDocument struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type,omitempty"`
	DocumentHash string `json:"document_hash"`
}

type bundleSignature struct {
	SignerID      string `json:"signer_id"`
	SignerName    string `json:"signer_name,omitempty"`
	SignerEmail   string `json:"signer_email"`
	CertificateID string `json:"certificate_id"`
	KeyID         string `json:"key_id"`
	Timestamp     string `json:"timestamp"`
	Signature     string `json:"signature"`
}

// writeSignedBundle persists the completed document artifact: the
// document identity plus every valid signature, canonically encoded.
func (uc *SignDocument) writeSignedBundle(ctx context.Context, tx Store, doc *domain.SignedDocument, valid []domain.Signature) error {
	bundle := signedBundle{
		Document: bundleDocument{
			DocumentID:   doc.DocumentID,
			DocumentType: doc.DocumentType,
			DocumentHash: doc.DocumentHash,
		},
		Signatures: make([]bundleSignature, 0, len(valid)),
	}
	for _, s := range valid {
		bundle.Signatures = append(bundle.Signatures, bundleSignature{
			SignerID:      s.SignerID,
			SignerName:    s.SignerName,
			SignerEmail:   s.SignerEmail,
			CertificateID: s.CertificateID,
			KeyID:         s.KeyID,
			Timestamp:     s.Timestamp.UTC().Format(time.RFC3339Nano),
			Signature:     base64.StdEncoding.EncodeToString(s.SignatureValue),
		})
	}
	encoded, err := uc.Crypto.CanonicalizeAny(bundle)
	if err != nil {
		return err
	}
	ref, err := uc.Storage.Put(ctx, doc.DocumentID+".signed", encoded)
	if err != nil {
		return fmt.Errorf("store signed bundle: %w", err)
	}
	return tx.Documents().SetSignedRef(ctx, doc.DocumentID, ref)
}

// recordTamper appends the hash_mismatch event outside the rolled-back
// transaction. The append is best effort; the mismatch error returned
// to the caller is the primary signal.
func (uc *SignDocument) recordTamper(ctx context.Context, documentID, actor, expectedHash, providedHash string) {
	emitter := NewAuditEmitter(uc.Store.AuditEvents(), uc.Clock)
	_ = emitter.EmitHashMismatch(ctx, documentID, actor, expectedHash, providedHash)
}

func (uc *SignDocument) notifyAfterSign(ctx context.Context, documentID string, request *domain.SignatureRequest, reqStatus domain.RequestStatus, valid []domain.Signature) {
	// request holds the pre-advance state, so Open() distinguishes a
	// fresh completion from an extra signature on a completed request.
	if uc.Notifier == nil || request == nil || !request.Open() {
		return
	}
	switch {
	case reqStatus == domain.RequestCompleted:
		uc.Notifier.Notify(ctx, request.RequesterID, domain.NotifyRequestCompleted, map[string]any{
			"request_id":  request.ID,
			"document_id": documentID,
		})
	case reqStatus == domain.RequestInProgress && request.Sequential:
		if next := nextRequiredSigner(request, valid); next != nil {
			uc.Notifier.Notify(ctx, next.Email, domain.NotifySignerTurn, map[string]any{
				"request_id":  request.ID,
				"document_id": documentID,
				"order":       next.Order,
			})
		}
	}
}

func (uc *SignDocument) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}

func newNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
