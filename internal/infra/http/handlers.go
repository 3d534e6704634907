package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signet/internal/domain"
	"signet/internal/infra/metrics"
	"signet/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type signRequest struct {
	DocumentType  string         `json:"document_type,omitempty"`
	ContentBase64 string         `json:"content_base64"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type signatureResponse struct {
	SignatureID     string `json:"signature_id"`
	DocumentID      string `json:"document_id"`
	SignerID        string `json:"signer_id"`
	SignerName      string `json:"signer_name,omitempty"`
	SignerEmail     string `json:"signer_email"`
	CertificateID   string `json:"certificate_id"`
	KeyID           string `json:"key_id"`
	Timestamp       string `json:"timestamp"`
	Signature       string `json:"signature"`
	VerificationURL string `json:"verification_url"`
}

type signResponse struct {
	Signature      signatureResponse `json:"signature"`
	DocumentStatus string            `json:"document_status"`
	RequestStatus  string            `json:"request_status,omitempty"`
}

type bulkSignRequest struct {
	Items []bulkSignItemInput `json:"items"`
}

type bulkSignItemInput struct {
	DocumentID    string         `json:"document_id"`
	DocumentType  string         `json:"document_type,omitempty"`
	ContentBase64 string         `json:"content_base64,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type bulkSignItemResult struct {
	DocumentID     string             `json:"document_id"`
	Signature      *signatureResponse `json:"signature,omitempty"`
	DocumentStatus string             `json:"document_status,omitempty"`
	Error          *errorResponse     `json:"error,omitempty"`
}

type bulkSignResponse struct {
	Succeeded int                  `json:"succeeded"`
	Results   []bulkSignItemResult `json:"results"`
}

type createRequestInput struct {
	DocumentID string              `json:"document_id"`
	Signers    []requestSignerBody `json:"signers"`
	Sequential bool                `json:"sequential,omitempty"`
	Deadline   string              `json:"deadline,omitempty"`
	Message    string              `json:"message,omitempty"`
}

type requestSignerBody struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type requestSignerOut struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Order  int    `json:"order"`
	Signed *bool  `json:"signed,omitempty"`
}

type requestResponse struct {
	RequestID   string             `json:"request_id"`
	DocumentID  string             `json:"document_id"`
	RequesterID string             `json:"requester_id"`
	Status      string             `json:"status"`
	Sequential  bool               `json:"sequential"`
	Deadline    string             `json:"deadline,omitempty"`
	Message     string             `json:"message,omitempty"`
	CreatedAt   string             `json:"created_at"`
	CompletedAt string             `json:"completed_at,omitempty"`
	Signers     []requestSignerOut `json:"signers"`
}

type signatureSummary struct {
	SignatureID   string `json:"signature_id"`
	SignerID      string `json:"signer_id"`
	SignerName    string `json:"signer_name,omitempty"`
	SignerEmail   string `json:"signer_email"`
	CertificateID string `json:"certificate_id"`
	KeyID         string `json:"key_id"`
	Timestamp     string `json:"timestamp"`
	Revoked       bool   `json:"revoked"`
	RevokedAt     string `json:"revoked_at,omitempty"`
	RevokedReason string `json:"revoked_reason,omitempty"`
}

type documentResponse struct {
	DocumentID   string             `json:"document_id"`
	DocumentType string             `json:"document_type,omitempty"`
	DocumentHash string             `json:"document_hash"`
	Status       string             `json:"status"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
	CreatedAt    string             `json:"created_at"`
	LastSignedAt string             `json:"last_signed_at,omitempty"`
	Signatures   []signatureSummary `json:"signatures"`
	Request      *requestResponse   `json:"request,omitempty"`
}

type auditEventResponse struct {
	Seq           int64           `json:"seq"`
	Actor         string          `json:"actor"`
	Action        string          `json:"action"`
	Detail        json.RawMessage `json:"detail,omitempty"`
	PayloadHash   string          `json:"payload_hash"`
	PrevEventHash string          `json:"prev_event_hash"`
	EventHash     string          `json:"event_hash"`
	CreatedAt     string          `json:"created_at"`
}

type auditTrailResponse struct {
	DocumentID string               `json:"document_id"`
	Events     []auditEventResponse `json:"events"`
}

type revokeRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type revokeResponse struct {
	SignatureID    string `json:"signature_id"`
	Revoked        bool   `json:"revoked"`
	AlreadyRevoked bool   `json:"already_revoked,omitempty"`
	RevokedAt      string `json:"revoked_at,omitempty"`
	DocumentStatus string `json:"document_status"`
}

type publicVerifyResponse struct {
	Valid         bool                  `json:"valid"`
	CertificateID string                `json:"certificate_id"`
	DocumentID    string                `json:"document_id"`
	DocumentHash  string                `json:"document_hash"`
	Signer        certificateSignerBody `json:"signer"`
	SignedAt      string                `json:"signed_at"`
	KeyID         string                `json:"key_id"`
	Revocation    *revocationBody       `json:"revocation,omitempty"`
}

type certificateSignerBody struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type revocationBody struct {
	RevokedAt string `json:"revoked_at,omitempty"`
	RevokedBy string `json:"revoked_by,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type auditChainResponse struct {
	DocumentID string `json:"document_id"`
	ChainValid bool   `json:"chain_valid"`
	Events     int    `json:"events"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleSignDocument(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid content encoding")
		return
	}
	resp, err := s.sign.Execute(c.Request.Context(), usecase.SignDocumentRequest{
		DocumentID:    c.Param("document_id"),
		DocumentType:  req.DocumentType,
		DocumentBytes: content,
		Metadata:      req.Metadata,
		Signer:        signerInfo(c),
	})
	if err != nil {
		if errors.Is(err, domain.ErrHashMismatch) {
			s.metrics.RecordTamper()
		}
		writeError(c, err)
		return
	}
	s.metrics.RecordSignature()
	c.JSON(http.StatusOK, signResponse{
		Signature:      s.buildSignatureResponse(resp.Signature),
		DocumentStatus: string(resp.DocumentStatus),
		RequestStatus:  string(resp.RequestStatus),
	})
}

func (s *Server) handleBulkSign(c *gin.Context) {
	var req bulkSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	items := make([]usecase.BulkSignItem, 0, len(req.Items))
	for _, item := range req.Items {
		content, err := base64.StdEncoding.DecodeString(item.ContentBase64)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid content encoding")
			return
		}
		items = append(items, usecase.BulkSignItem{
			DocumentID:    item.DocumentID,
			DocumentType:  item.DocumentType,
			DocumentBytes: content,
			Metadata:      item.Metadata,
		})
	}
	resp, err := s.bulk.Execute(c.Request.Context(), usecase.BulkSignRequest{
		Items:  items,
		Signer: signerInfo(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := bulkSignResponse{
		Succeeded: resp.Succeeded,
		Results:   make([]bulkSignItemResult, 0, len(resp.Results)),
	}
	for _, result := range resp.Results {
		item := bulkSignItemResult{DocumentID: result.DocumentID}
		if result.Err != nil {
			if errors.Is(result.Err, domain.ErrHashMismatch) {
				s.metrics.RecordTamper()
			}
			_, code := mapError(result.Err)
			item.Error = &errorResponse{Code: code, Message: result.Err.Error()}
		} else {
			s.metrics.RecordSignature()
			sigOut := s.buildSignatureResponse(*result.Signature)
			item.Signature = &sigOut
			item.DocumentStatus = string(result.DocumentStatus)
		}
		out.Results = append(out.Results, item)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateRequest(c *gin.Context) {
	var req createRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	var deadline *time.Time
	if req.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid deadline")
			return
		}
		parsed = parsed.UTC()
		deadline = &parsed
	}
	signers := make([]domain.RequestSigner, 0, len(req.Signers))
	for _, signer := range req.Signers {
		signers = append(signers, domain.RequestSigner{Email: signer.Email, Name: signer.Name})
	}
	principal, _ := getPrincipal(c)
	resp, err := s.createReq.Execute(c.Request.Context(), usecase.CreateSignatureRequestRequest{
		DocumentID:  req.DocumentID,
		RequesterID: principal.ID,
		Signers:     signers,
		Deadline:    deadline,
		Sequential:  req.Sequential,
		Message:     req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRequestResponse(resp.Request, nil))
}

func (s *Server) handleGetRequest(c *gin.Context) {
	resp, err := s.getReq.Execute(c.Request.Context(), usecase.GetSignatureRequestRequest{
		RequestID: c.Param("request_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRequestResponse(resp.Request, resp.Progress))
}

func (s *Server) handleCancelRequest(c *gin.Context) {
	principal, _ := getPrincipal(c)
	resp, err := s.cancelReq.Execute(c.Request.Context(), usecase.CancelSignatureRequestRequest{
		RequestID:   c.Param("request_id"),
		RequesterID: principal.ID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRequestResponse(resp.Request, nil))
}

func (s *Server) handleGetDocument(c *gin.Context) {
	resp, err := s.getDoc.Execute(c.Request.Context(), usecase.GetDocumentRequest{
		DocumentID: c.Param("document_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := documentResponse{
		DocumentID:   resp.Document.DocumentID,
		DocumentType: resp.Document.DocumentType,
		DocumentHash: resp.Document.DocumentHash,
		Status:       string(resp.Document.Status),
		Metadata:     resp.Document.Metadata,
		CreatedAt:    resp.Document.CreatedAt.UTC().Format(time.RFC3339Nano),
		Signatures:   make([]signatureSummary, 0, len(resp.Signatures)),
	}
	if resp.Document.LastSignedAt != nil {
		out.LastSignedAt = resp.Document.LastSignedAt.UTC().Format(time.RFC3339Nano)
	}
	for _, sig := range resp.Signatures {
		out.Signatures = append(out.Signatures, buildSignatureSummary(sig))
	}
	if resp.Request != nil {
		requestOut := buildRequestResponse(*resp.Request, nil)
		out.Request = &requestOut
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	documentID := c.Param("document_id")
	resp, err := s.trail.Execute(c.Request.Context(), usecase.GetAuditTrailRequest{DocumentID: documentID})
	if err != nil {
		writeError(c, err)
		return
	}
	out := auditTrailResponse{
		DocumentID: documentID,
		Events:     make([]auditEventResponse, 0, len(resp.Events)),
	}
	for _, event := range resp.Events {
		out.Events = append(out.Events, buildAuditEventResponse(event))
	}
	c.JSON(http.StatusOK, out)
}

// handleCertificate streams the canonical certificate artifact bytes
// verbatim, so what the client stores is exactly what offline
// verification expects.
func (s *Server) handleCertificate(c *gin.Context) {
	resp, err := s.certificate.Execute(c.Request.Context(), usecase.GenerateCertificateRequest{
		SignatureID: c.Param("signature_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Artifact)
}

func (s *Server) handleRevokeSignature(c *gin.Context) {
	var req revokeRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	principal, _ := getPrincipal(c)
	resp, err := s.revoke.Execute(c.Request.Context(), usecase.RevokeSignatureRequest{
		SignatureID:  c.Param("signature_id"),
		Reason:       req.Reason,
		ActingUserID: principal.ID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := revokeResponse{
		SignatureID:    resp.Signature.ID,
		Revoked:        resp.Signature.Revoked,
		AlreadyRevoked: resp.AlreadyRevoked,
		DocumentStatus: string(resp.DocumentStatus),
	}
	if resp.Signature.RevokedAt != nil {
		out.RevokedAt = resp.Signature.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePublicVerify(c *gin.Context) {
	resp, err := s.verifyCert.Execute(c.Request.Context(), usecase.VerifyCertificateRequest{
		CertificateID: c.Param("certificate_id"),
	})
	if err != nil {
		// The public surface never exposes internals: unknown ids are a
		// plain not-found, everything else a generic failure.
		if errors.Is(err, domain.ErrSignatureNotFound) || errors.Is(err, domain.ErrDocumentNotFound) {
			s.metrics.RecordVerification(metrics.OutcomeNotFound)
			writeErrorCode(c, http.StatusNotFound, "CERTIFICATE_NOT_FOUND", "certificate not found")
			return
		}
		if errors.Is(err, domain.ErrInvalid) {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "certificate id is required")
			return
		}
		s.logger.Error("public verify failed", zap.Error(err))
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "verification unavailable")
		return
	}

	switch {
	case resp.Valid:
		s.metrics.RecordVerification(metrics.OutcomeValid)
	case resp.CryptoValid && resp.Revoked:
		s.metrics.RecordVerification(metrics.OutcomeRevoked)
	default:
		s.metrics.RecordVerification(metrics.OutcomeInvalid)
	}

	out := publicVerifyResponse{
		Valid:         resp.Valid,
		CertificateID: resp.CertificateID,
		DocumentID:    resp.DocumentID,
		DocumentHash:  resp.DocumentHash,
		Signer: certificateSignerBody{
			ID:    resp.Signer.ID,
			Name:  resp.Signer.Name,
			Email: resp.Signer.Email,
		},
		SignedAt: resp.SignedAt.Format(time.RFC3339Nano),
		KeyID:    resp.KeyID,
	}
	if resp.Revoked {
		revocation := &revocationBody{
			RevokedBy: resp.RevokedBy,
			Reason:    resp.RevokedReason,
		}
		if resp.RevokedAt != nil {
			revocation.RevokedAt = resp.RevokedAt.UTC().Format(time.RFC3339Nano)
		}
		out.Revocation = revocation
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleVerifyAuditChain(c *gin.Context) {
	documentID := c.Param("document_id")
	trail, err := s.trail.Execute(c.Request.Context(), usecase.GetAuditTrailRequest{DocumentID: documentID})
	if err != nil {
		writeError(c, err)
		return
	}
	out := auditChainResponse{
		DocumentID: documentID,
		ChainValid: true,
		Events:     len(trail.Events),
	}
	if err := usecase.VerifyDocumentAuditChain(c.Request.Context(), s.store.AuditEvents(), documentID); err != nil {
		out.ChainValid = false
		out.Error = err.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) buildSignatureResponse(sig domain.Signature) signatureResponse {
	return signatureResponse{
		SignatureID:     sig.ID,
		DocumentID:      sig.SignedDocumentID,
		SignerID:        sig.SignerID,
		SignerName:      sig.SignerName,
		SignerEmail:     sig.SignerEmail,
		CertificateID:   sig.CertificateID,
		KeyID:           sig.KeyID,
		Timestamp:       sig.Timestamp.UTC().Format(time.RFC3339Nano),
		Signature:       base64.StdEncoding.EncodeToString(sig.SignatureValue),
		VerificationURL: s.verificationURL(sig.CertificateID),
	}
}

func (s *Server) verificationURL(certificateID string) string {
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/verify/" + certificateID
}

func buildRequestResponse(request domain.SignatureRequest, progress []usecase.SignerProgress) requestResponse {
	out := requestResponse{
		RequestID:   request.ID,
		DocumentID:  request.DocumentID,
		RequesterID: request.RequesterID,
		Status:      string(request.Status),
		Sequential:  request.Sequential,
		Message:     request.Message,
		CreatedAt:   request.CreatedAt.UTC().Format(time.RFC3339Nano),
		Signers:     make([]requestSignerOut, 0, len(request.Signers)),
	}
	if request.Deadline != nil {
		out.Deadline = request.Deadline.UTC().Format(time.RFC3339Nano)
	}
	if request.CompletedAt != nil {
		out.CompletedAt = request.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	signed := make(map[string]bool, len(progress))
	for _, p := range progress {
		signed[p.Email] = p.Signed
	}
	for _, signer := range request.Signers {
		row := requestSignerOut{Email: signer.Email, Name: signer.Name, Order: signer.Order}
		if progress != nil {
			value := signed[signer.Email]
			row.Signed = &value
		}
		out.Signers = append(out.Signers, row)
	}
	return out
}

func buildSignatureSummary(sig domain.Signature) signatureSummary {
	out := signatureSummary{
		SignatureID:   sig.ID,
		SignerID:      sig.SignerID,
		SignerName:    sig.SignerName,
		SignerEmail:   sig.SignerEmail,
		CertificateID: sig.CertificateID,
		KeyID:         sig.KeyID,
		Timestamp:     sig.Timestamp.UTC().Format(time.RFC3339Nano),
		Revoked:       sig.Revoked,
		RevokedReason: sig.RevokedReason,
	}
	if sig.RevokedAt != nil {
		out.RevokedAt = sig.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func buildAuditEventResponse(event domain.AuditEvent) auditEventResponse {
	out := auditEventResponse{
		Seq:           event.Seq,
		Actor:         event.Actor,
		Action:        string(event.Action),
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if detail, ok := event.Detail.([]byte); ok {
		out.Detail = json.RawMessage(detail)
	}
	return out
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND"
	case errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound, "REQUEST_NOT_FOUND"
	case errors.Is(err, domain.ErrSignatureNotFound):
		return http.StatusNotFound, "SIGNATURE_NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateSignature):
		return http.StatusConflict, "DUPLICATE_SIGNATURE"
	case errors.Is(err, domain.ErrOutOfOrderSigning):
		return http.StatusConflict, "OUT_OF_ORDER"
	case errors.Is(err, domain.ErrRequestClosed):
		return http.StatusConflict, "REQUEST_CLOSED"
	case errors.Is(err, domain.ErrRequestExists):
		return http.StatusConflict, "REQUEST_EXISTS"
	case errors.Is(err, domain.ErrRequestExpired):
		return http.StatusGone, "REQUEST_EXPIRED"
	case errors.Is(err, domain.ErrHashMismatch):
		return http.StatusUnprocessableEntity, "HASH_MISMATCH"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrSigningKeyUnavailable):
		return http.StatusServiceUnavailable, "SIGNING_KEY_UNAVAILABLE"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c *gin.Context, err error) {
	status, code := mapError(err)
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
