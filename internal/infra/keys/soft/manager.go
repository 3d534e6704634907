// Package soft implements the platform KeyManager with an in-process
// Ed25519 key loaded from configuration. Suitable for single-node
// deployments and tests; the private key never crosses the package
// boundary.
package soft

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"signet/internal/config"
	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
)

type Manager struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewManagerFromConfig builds a manager from SIGNING_KEY_SEED_HEX. An
// unset seed yields a keyless manager whose Sign reports
// ErrSigningKeyUnavailable, so the server can still boot for
// read-only work.
func NewManagerFromConfig(cfg config.Config) (*Manager, error) {
	if cfg.SigningKeySeedHex == "" {
		return &Manager{keyID: cfg.SigningKeyID}, nil
	}
	seed, err := hex.DecodeString(cfg.SigningKeySeedHex)
	if err != nil {
		return nil, fmt.Errorf("decode signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid signing key seed length: %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newManager(priv, cfg.SigningKeyID), nil
}

// NewEphemeralManager generates a throwaway keypair. Dev mode and
// tests only.
func NewEphemeralManager() (*Manager, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return newManager(priv, ""), nil
}

func newManager(priv ed25519.PrivateKey, keyID string) *Manager {
	pub := priv.Public().(ed25519.PublicKey)
	if keyID == "" {
		keyID = deriveKeyID(pub)
	}
	return &Manager{priv: priv, pub: pub, keyID: keyID}
}

func (m *Manager) Sign(_ context.Context, payload []byte) ([]byte, error) {
	if m == nil || m.priv == nil {
		return nil, domain.ErrSigningKeyUnavailable
	}
	return ed25519.Sign(m.priv, payload), nil
}

func (m *Manager) Verify(_ context.Context, payload []byte, sig []byte) error {
	if m == nil || m.pub == nil {
		return domain.ErrSigningKeyUnavailable
	}
	return cryptoinfra.VerifySignature(payload, sig, m.pub)
}

func (m *Manager) PublicKey() []byte {
	if m == nil || m.pub == nil {
		return nil
	}
	return append([]byte(nil), m.pub...)
}

func (m *Manager) KeyID() string {
	if m == nil {
		return ""
	}
	return m.keyID
}

func deriveKeyID(pub ed25519.PublicKey) string {
	return "sig-" + cryptoinfra.SHA256Hex(pub)[:16]
}
