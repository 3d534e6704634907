package usecase

import (
	"errors"
	"testing"

	"signet/internal/domain"
)

func TestDeriveDocumentStatus(t *testing.T) {
	sig := func(email string) domain.Signature {
		return domain.Signature{SignerEmail: email}
	}
	request := func(status domain.RequestStatus, emails ...string) *domain.SignatureRequest {
		req := &domain.SignatureRequest{Status: status}
		for i, email := range emails {
			req.Signers = append(req.Signers, domain.RequestSigner{Email: email, Order: i})
		}
		return req
	}

	cases := []struct {
		name    string
		valid   []domain.Signature
		revoked int
		req     *domain.SignatureRequest
		want    domain.DocumentStatus
	}{
		{"ad hoc without signatures", nil, 0, nil, domain.DocumentPending},
		{"ad hoc signed", []domain.Signature{sig("a@x.example")}, 0, nil, domain.DocumentSigned},
		{"ad hoc all revoked", nil, 2, nil, domain.DocumentRevoked},
		{"request pending", nil, 0, request(domain.RequestPending, "a@x.example"), domain.DocumentPending},
		{"request partially covered", []domain.Signature{sig("a@x.example")}, 0,
			request(domain.RequestInProgress, "a@x.example", "b@x.example"), domain.DocumentPartiallySigned},
		{"request covered", []domain.Signature{sig("a@x.example"), sig("b@x.example")}, 0,
			request(domain.RequestCompleted, "a@x.example", "b@x.example"), domain.DocumentSigned},
		{"coverage matches email case insensitively", []domain.Signature{sig("A@X.example")}, 0,
			request(domain.RequestInProgress, "a@x.example"), domain.DocumentSigned},
		{"expired without signatures", nil, 0,
			request(domain.RequestExpired, "a@x.example"), domain.DocumentExpired},
		{"expired keeps collected signatures", []domain.Signature{sig("a@x.example")}, 0,
			request(domain.RequestExpired, "a@x.example", "b@x.example"), domain.DocumentPartiallySigned},
		{"all revoked under open request", nil, 1,
			request(domain.RequestInProgress, "a@x.example"), domain.DocumentRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveDocumentStatus(tc.valid, tc.revoked, tc.req); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCheckSequentialOrder(t *testing.T) {
	req := &domain.SignatureRequest{
		Sequential: true,
		Signers: []domain.RequestSigner{
			{Email: "first@x.example", Order: 0},
			{Email: "second@x.example", Order: 1},
			{Email: "third@x.example", Order: 2},
		},
	}
	signerFor := func(email string) domain.SignerInfo {
		return domain.SignerInfo{ID: "user-1", Email: email}
	}

	if err := checkSequentialOrder(req, signerFor("first@x.example"), nil); err != nil {
		t.Fatalf("first signer with empty ledger: %v", err)
	}
	if err := checkSequentialOrder(req, signerFor("second@x.example"), nil); !errors.Is(err, domain.ErrOutOfOrderSigning) {
		t.Fatalf("expected ErrOutOfOrderSigning for second signer first, got %v", err)
	}

	valid := []domain.Signature{{SignerEmail: "FIRST@x.example"}}
	if err := checkSequentialOrder(req, signerFor("second@x.example"), valid); err != nil {
		t.Fatalf("second signer after first signed: %v", err)
	}
	if err := checkSequentialOrder(req, signerFor("third@x.example"), valid); !errors.Is(err, domain.ErrOutOfOrderSigning) {
		t.Fatalf("expected ErrOutOfOrderSigning for third before second, got %v", err)
	}
	if err := checkSequentialOrder(req, signerFor("stranger@x.example"), valid); !errors.Is(err, domain.ErrOutOfOrderSigning) {
		t.Fatalf("expected ErrOutOfOrderSigning for unlisted signer, got %v", err)
	}
}

func TestNextRequiredSigner(t *testing.T) {
	// Signers listed out of positional order: the order index decides.
	req := &domain.SignatureRequest{
		Signers: []domain.RequestSigner{
			{Email: "second@x.example", Order: 1},
			{Email: "first@x.example", Order: 0},
		},
	}
	next := nextRequiredSigner(req, nil)
	if next == nil || next.Email != "first@x.example" {
		t.Fatalf("expected lowest-order signer, got %+v", next)
	}
	next = nextRequiredSigner(req, []domain.Signature{{SignerEmail: "first@x.example"}})
	if next == nil || next.Email != "second@x.example" {
		t.Fatalf("expected second signer next, got %+v", next)
	}
	covered := []domain.Signature{{SignerEmail: "first@x.example"}, {SignerEmail: "second@x.example"}}
	if nextRequiredSigner(req, covered) != nil {
		t.Fatal("expected nil once the request is covered")
	}
	if nextRequiredSigner(nil, nil) != nil {
		t.Fatal("expected nil for a nil request")
	}
}

func TestActiveSignaturesFiltersRevoked(t *testing.T) {
	sigs := []domain.Signature{
		{ID: "sig-1", Revoked: true},
		{ID: "sig-2"},
		{ID: "sig-3", Revoked: true},
	}
	active := activeSignatures(sigs)
	if len(active) != 1 || active[0].ID != "sig-2" {
		t.Fatalf("unexpected active set: %+v", active)
	}
	if countRevoked(sigs) != 2 {
		t.Fatalf("expected 2 revoked, got %d", countRevoked(sigs))
	}
}
