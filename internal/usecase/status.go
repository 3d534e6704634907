package usecase

import (
	"strings"

	"signet/internal/domain"
)

// DeriveDocumentStatus recomputes a document's status from its valid
// signature set and the request governing it (nil for ad-hoc
// documents). Every mutation of signatures or requests funnels its
// status update through here.
func DeriveDocumentStatus(valid []domain.Signature, revoked int, req *domain.SignatureRequest) domain.DocumentStatus {
	if req == nil {
		switch {
		case len(valid) > 0:
			return domain.DocumentSigned
		case revoked > 0:
			return domain.DocumentRevoked
		default:
			return domain.DocumentPending
		}
	}
	if requestCovered(req, valid) {
		return domain.DocumentSigned
	}
	if len(valid) > 0 {
		return domain.DocumentPartiallySigned
	}
	if req.Status == domain.RequestExpired {
		return domain.DocumentExpired
	}
	if revoked > 0 {
		return domain.DocumentRevoked
	}
	return domain.DocumentPending
}

// requestCovered reports whether every required signer holds a valid
// signature. Signers are matched to signatures by normalized email.
func requestCovered(req *domain.SignatureRequest, valid []domain.Signature) bool {
	if req == nil || len(req.Signers) == 0 {
		return false
	}
	have := signedEmails(valid)
	for _, rs := range req.Signers {
		if !have[signerKey(rs.Email)] {
			return false
		}
	}
	return true
}

// checkSequentialOrder enforces strict signing order for a sequential
// request: the signer must be on the signer list and everyone with a
// lower order index must already hold a valid signature.
func checkSequentialOrder(req *domain.SignatureRequest, signer domain.SignerInfo, valid []domain.Signature) error {
	key := signerKey(signer.Email)
	var entry *domain.RequestSigner
	for i := range req.Signers {
		if signerKey(req.Signers[i].Email) == key {
			entry = &req.Signers[i]
			break
		}
	}
	if entry == nil {
		return domain.ErrOutOfOrderSigning
	}
	have := signedEmails(valid)
	for _, rs := range req.Signers {
		if rs.Order < entry.Order && !have[signerKey(rs.Email)] {
			return domain.ErrOutOfOrderSigning
		}
	}
	return nil
}

// nextRequiredSigner returns the lowest-order signer still missing a
// valid signature, or nil once the request is covered.
func nextRequiredSigner(req *domain.SignatureRequest, valid []domain.Signature) *domain.RequestSigner {
	if req == nil {
		return nil
	}
	have := signedEmails(valid)
	var next *domain.RequestSigner
	for i := range req.Signers {
		rs := &req.Signers[i]
		if have[signerKey(rs.Email)] {
			continue
		}
		if next == nil || rs.Order < next.Order {
			next = rs
		}
	}
	return next
}

func activeSignatures(sigs []domain.Signature) []domain.Signature {
	out := make([]domain.Signature, 0, len(sigs))
	for _, s := range sigs {
		if !s.Revoked {
			out = append(out, s)
		}
	}
	return out
}

func countRevoked(sigs []domain.Signature) int {
	n := 0
	for _, s := range sigs {
		if s.Revoked {
			n++
		}
	}
	return n
}

func signedEmails(valid []domain.Signature) map[string]bool {
	have := make(map[string]bool, len(valid))
	for _, s := range valid {
		have[signerKey(s.SignerEmail)] = true
	}
	return have
}

func signerKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
