package domain

import "context"

// KeyManager holds the platform signing key. The private key never
// leaves the implementation; callers only submit payload bytes.
type KeyManager interface {
	Sign(ctx context.Context, payload []byte) ([]byte, error)
	Verify(ctx context.Context, payload []byte, sig []byte) error
	PublicKey() []byte
	KeyID() string
}
