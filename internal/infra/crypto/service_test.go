package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"signet/internal/domain"
)

func TestCanonicalizePayloadExactBytes(t *testing.T) {
	service := NewService()
	payload := domain.SignablePayload{
		V:            domain.SignablePayloadVersion,
		DocumentHash: "ab12",
		SignerID:     "signer-1",
		Timestamp:    "2026-01-02T03:04:05.000000006Z",
		Nonce:        "00112233445566778899aabbccddeeff",
	}

	got, err := service.CanonicalizePayload(payload)
	if err != nil {
		t.Fatalf("canonicalize payload: %v", err)
	}
	want := `{"document_hash":"ab12","nonce":"00112233445566778899aabbccddeeff","signer_id":"signer-1","timestamp":"2026-01-02T03:04:05.000000006Z","v":1}`
	if string(got) != want {
		t.Fatalf("payload bytes mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalizePayloadRejectsUnknownVersion(t *testing.T) {
	service := NewService()
	if _, err := service.CanonicalizePayload(domain.SignablePayload{V: 2}); err == nil {
		t.Fatal("expected error for unsupported payload version")
	}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	payload := []byte(`{"v":1}`)
	sig := ed25519.Sign(priv, payload)

	if err := VerifySignature(payload, sig, pub); err != nil {
		t.Fatalf("verify genuine signature: %v", err)
	}

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01
	if err := VerifySignature(mutated, sig, pub); err == nil {
		t.Fatal("expected verification failure for mutated payload")
	}

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := VerifySignature(payload, sig, otherPub); err == nil {
		t.Fatal("expected verification failure for wrong public key")
	}

	if err := VerifySignature(payload, sig[:10], pub); err == nil {
		t.Fatal("expected verification failure for truncated signature")
	}
}

func TestVerifyEncodedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	payload := []byte("certificate bytes")
	sigB64 := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payload))

	if err := VerifyEncodedSignature(payload, sigB64, pub); err != nil {
		t.Fatalf("verify encoded signature: %v", err)
	}
	if err := VerifyEncodedSignature(payload, "", pub); err == nil {
		t.Fatal("expected error for empty signature")
	}
	if err := VerifyEncodedSignature(payload, "not base64!!", pub); err == nil {
		t.Fatal("expected error for undecodable signature")
	}
}

func TestHashDocumentMediaTypes(t *testing.T) {
	lf, err := HashDocument("text/plain", []byte("line one\nline two\n"))
	if err != nil {
		t.Fatalf("hash lf text: %v", err)
	}
	crlf, err := HashDocument("text/plain; charset=utf-8", []byte("line one\r\nline two\r\n"))
	if err != nil {
		t.Fatalf("hash crlf text: %v", err)
	}
	if lf != crlf {
		t.Fatalf("line ending normalization changed hash: %s vs %s", lf, crlf)
	}

	a, err := HashDocument("application/json", []byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("hash json: %v", err)
	}
	b, err := HashDocument("application/json", []byte("{\"a\": 1, \"b\": 2}"))
	if err != nil {
		t.Fatalf("hash json: %v", err)
	}
	if a != b {
		t.Fatalf("json canonicalization changed hash: %s vs %s", a, b)
	}

	raw := []byte{0x00, 0xff, 0x10}
	got, err := HashDocument("application/pdf", raw)
	if err != nil {
		t.Fatalf("hash binary: %v", err)
	}
	if got != SHA256Hex(raw) {
		t.Fatal("binary content must hash as-is")
	}
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	b, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("nonce length: %d and %d, want 32 hex chars", len(a), len(b))
	}
	if a == b {
		t.Fatal("nonces must be unique")
	}
}
