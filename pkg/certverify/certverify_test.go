package certverify

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
)

type artifactBuilder struct {
	t    *testing.T
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	svc  *cryptoinfra.Service
}

func newArtifactBuilder(t *testing.T) *artifactBuilder {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &artifactBuilder{
		t:    t,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
		svc:  cryptoinfra.NewService(),
	}
}

// build assembles an artifact the way the signing service does: payload
// signed first, certificate countersigned over its canonical bytes.
// mutate runs before countersigning, so tests can produce certificates
// the platform key genuinely signed but whose fields disagree.
func (b *artifactBuilder) build(document []byte, mutate func(*domain.Certificate)) []byte {
	b.t.Helper()
	signedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	payload := domain.SignablePayload{
		V:            domain.SignablePayloadVersion,
		DocumentHash: cryptoinfra.SHA256Hex(document),
		SignerID:     "user-ann",
		Timestamp:    signedAt.Format(time.RFC3339Nano),
		Nonce:        "6e6f6e63652d6e6f6e63652d6e6f6e63",
	}
	payloadBytes, err := b.svc.CanonicalizePayload(payload)
	if err != nil {
		b.t.Fatalf("canonicalize payload: %v", err)
	}
	cert := domain.Certificate{
		V:             domain.CertificateVersion,
		CertificateID: "cert-1",
		DocumentID:    "doc-1",
		DocumentType:  "contract",
		DocumentHash:  payload.DocumentHash,
		Signer: domain.CertificateSigner{
			ID:    "user-ann",
			Name:  "Ann Example",
			Email: "ann@corp.example",
		},
		SignedAt:  payload.Timestamp,
		KeyID:     "platform-key-1",
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(b.priv, payloadBytes)),
		Payload:   json.RawMessage(payloadBytes),
	}
	if mutate != nil {
		mutate(&cert)
	}
	canonical, err := b.svc.CanonicalizeCertificate(cert)
	if err != nil {
		b.t.Fatalf("canonicalize certificate: %v", err)
	}
	envelope := domain.CertificateEnvelope{
		Certificate: cert,
		Countersignature: domain.Countersignature{
			KeyID: "platform-key-1",
			Alg:   "ed25519",
			Value: base64.StdEncoding.EncodeToString(ed25519.Sign(b.priv, canonical)),
		},
	}
	artifact, err := b.svc.CanonicalizeAny(envelope)
	if err != nil {
		b.t.Fatalf("canonicalize envelope: %v", err)
	}
	return artifact
}

func TestVerifyAcceptsGenuineArtifact(t *testing.T) {
	b := newArtifactBuilder(t)
	document := []byte("employment agreement v3")
	artifact := b.build(document, nil)

	result, err := Verify(artifact, Options{PlatformPublicKey: b.pub})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.CertificateID != "cert-1" || result.DocumentID != "doc-1" {
		t.Fatalf("result = %+v", result)
	}
	if result.DocumentHash != cryptoinfra.SHA256Hex(document) {
		t.Fatalf("document hash = %q", result.DocumentHash)
	}
	if result.Signer.ID != "user-ann" || result.Signer.Email != "ann@corp.example" {
		t.Fatalf("signer = %+v", result.Signer)
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !result.SignedAt.Equal(want) {
		t.Fatalf("signed at = %v, want %v", result.SignedAt, want)
	}
	if result.KeyID != "platform-key-1" || result.Nonce == "" {
		t.Fatalf("result = %+v", result)
	}
	if result.DocumentMatch != nil {
		t.Fatal("document match reported without document bytes")
	}

	result, err = Verify(artifact, Options{PlatformPublicKey: b.pub, Document: document})
	if err != nil {
		t.Fatalf("verify with document: %v", err)
	}
	if result.DocumentMatch == nil || !*result.DocumentMatch {
		t.Fatalf("document match = %v", result.DocumentMatch)
	}
}

func TestVerifyAcceptsReformattedArtifact(t *testing.T) {
	b := newArtifactBuilder(t)
	artifact := b.build([]byte("content"), nil)

	var pretty map[string]any
	if err := json.Unmarshal(artifact, &pretty); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	reencoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		t.Fatalf("re-encode artifact: %v", err)
	}

	if _, err := Verify(reencoded, Options{PlatformPublicKey: b.pub}); err != nil {
		t.Fatalf("verify reformatted artifact: %v", err)
	}
}

func TestVerifyRejectsTamperedArtifact(t *testing.T) {
	b := newArtifactBuilder(t)
	artifact := b.build([]byte("original"), nil)

	var decoded map[string]any
	if err := json.Unmarshal(artifact, &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	cert := decoded["certificate"].(map[string]any)
	cert["document_hash"] = cryptoinfra.SHA256Hex([]byte("swapped"))
	tampered, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-encode artifact: %v", err)
	}

	if _, err := Verify(tampered, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrCountersignature) {
		t.Fatalf("verify tampered artifact: %v, want ErrCountersignature", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	b := newArtifactBuilder(t)
	artifact := b.build([]byte("original"), nil)

	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := Verify(artifact, Options{PlatformPublicKey: otherPub}); !errors.Is(err, ErrCountersignature) {
		t.Fatalf("verify with wrong key: %v, want ErrCountersignature", err)
	}

	if _, err := Verify(artifact, Options{}); err == nil {
		t.Fatal("verify without key succeeded")
	}
}

func TestVerifyRejectsBrokenEmbeddedSignature(t *testing.T) {
	b := newArtifactBuilder(t)
	artifact := b.build([]byte("original"), func(cert *domain.Certificate) {
		sig, err := base64.StdEncoding.DecodeString(cert.Signature)
		if err != nil {
			t.Fatalf("decode signature: %v", err)
		}
		sig[0] ^= 0xff
		cert.Signature = base64.StdEncoding.EncodeToString(sig)
	})

	if _, err := Verify(artifact, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrSignature) {
		t.Fatalf("verify broken signature: %v, want ErrSignature", err)
	}
}

func TestVerifyRejectsInconsistentCertificate(t *testing.T) {
	b := newArtifactBuilder(t)

	artifact := b.build([]byte("original"), func(cert *domain.Certificate) {
		cert.DocumentHash = cryptoinfra.SHA256Hex([]byte("different"))
	})
	if _, err := Verify(artifact, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("verify hash-inconsistent certificate: %v, want ErrInconsistent", err)
	}

	artifact = b.build([]byte("original"), func(cert *domain.Certificate) {
		cert.Signer.ID = "user-mallory"
	})
	if _, err := Verify(artifact, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("verify signer-inconsistent certificate: %v, want ErrInconsistent", err)
	}
}

func TestVerifyRejectsMalformedArtifacts(t *testing.T) {
	b := newArtifactBuilder(t)

	if _, err := Verify([]byte("{broken"), Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("verify garbage: %v, want ErrMalformed", err)
	}
	if _, err := Verify([]byte(`{"countersignature":{}}`), Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("verify without certificate: %v, want ErrMalformed", err)
	}

	artifact := b.build([]byte("original"), func(cert *domain.Certificate) {
		cert.V = 2
	})
	if _, err := Verify(artifact, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("verify unsupported version: %v, want ErrMalformed", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b.build([]byte("original"), nil), &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	decoded["countersignature"].(map[string]any)["alg"] = "none"
	badAlg, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-encode artifact: %v", err)
	}
	if _, err := Verify(badAlg, Options{PlatformPublicKey: b.pub}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("verify bad algorithm: %v, want ErrMalformed", err)
	}
}

func TestVerifyDetectsDocumentMismatch(t *testing.T) {
	b := newArtifactBuilder(t)
	artifact := b.build([]byte("original"), nil)

	_, err := Verify(artifact, Options{PlatformPublicKey: b.pub, Document: []byte("edited after signing")})
	if !errors.Is(err, ErrDocumentMismatch) {
		t.Fatalf("verify mismatched document: %v, want ErrDocumentMismatch", err)
	}
}
