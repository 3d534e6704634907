package domain

import "context"

// ObjectStore persists document payloads and signed bundles. Put returns
// an opaque reference that Get accepts back.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}
