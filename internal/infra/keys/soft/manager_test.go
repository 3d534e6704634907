package soft

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"signet/internal/config"
	"signet/internal/domain"
)

func TestManagerFromConfigSeed(t *testing.T) {
	seed := strings.Repeat("ab", ed25519.SeedSize)
	mgr, err := NewManagerFromConfig(config.Config{SigningKeySeedHex: seed})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	payload := []byte("payload bytes")
	sig, err := mgr.Sign(context.Background(), payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := mgr.Verify(context.Background(), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}

	raw, _ := hex.DecodeString(seed)
	want := ed25519.NewKeyFromSeed(raw).Public().(ed25519.PublicKey)
	if string(mgr.PublicKey()) != string(want) {
		t.Fatal("public key does not match seed")
	}
	if !strings.HasPrefix(mgr.KeyID(), "sig-") || len(mgr.KeyID()) != len("sig-")+16 {
		t.Fatalf("unexpected derived key id: %q", mgr.KeyID())
	}

	// Same seed, same signature: deterministic signing.
	again, err := NewManagerFromConfig(config.Config{SigningKeySeedHex: seed})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	sig2, err := again.Sign(context.Background(), payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if string(sig) != string(sig2) {
		t.Fatal("signatures over identical payloads must match")
	}
}

func TestManagerConfiguredKeyID(t *testing.T) {
	seed := strings.Repeat("01", ed25519.SeedSize)
	mgr, err := NewManagerFromConfig(config.Config{SigningKeySeedHex: seed, SigningKeyID: "platform-2026"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if mgr.KeyID() != "platform-2026" {
		t.Fatalf("key id: got %q, want platform-2026", mgr.KeyID())
	}
}

func TestManagerRejectsBadSeed(t *testing.T) {
	if _, err := NewManagerFromConfig(config.Config{SigningKeySeedHex: "zz"}); err == nil {
		t.Fatal("expected error for non-hex seed")
	}
	if _, err := NewManagerFromConfig(config.Config{SigningKeySeedHex: "abcd"}); err == nil {
		t.Fatal("expected error for short seed")
	}
}

func TestKeylessManagerSignUnavailable(t *testing.T) {
	mgr, err := NewManagerFromConfig(config.Config{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.Sign(context.Background(), []byte("x")); !errors.Is(err, domain.ErrSigningKeyUnavailable) {
		t.Fatalf("sign error: got %v, want ErrSigningKeyUnavailable", err)
	}
}

func TestEphemeralManager(t *testing.T) {
	mgr, err := NewEphemeralManager()
	if err != nil {
		t.Fatalf("new ephemeral manager: %v", err)
	}
	sig, err := mgr.Sign(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := mgr.Verify(context.Background(), []byte("x"), sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
