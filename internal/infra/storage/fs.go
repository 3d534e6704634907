// Package storage provides the object store adapters: a
// content-addressed filesystem store and an in-memory store for tests
// and dev mode. Refs are SHA-256 hex digests of the stored bytes, so
// objects are immutable and duplicate content dedupes itself.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cryptoinfra "signet/internal/infra/crypto"
)

type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("object store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &FS{root: root}, nil
}

func (s *FS) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := cryptoinfra.SHA256Hex(data)
	path := s.objectPath(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	// Write-then-rename keeps readers from ever seeing a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize object: %w", err)
	}
	return ref, nil
}

func (s *FS) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.objectPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s not found", ref)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *FS) objectPath(ref string) string {
	return filepath.Join(s.root, "objects", ref[:2], ref[2:])
}

func validateRef(ref string) error {
	if len(ref) != 64 {
		return fmt.Errorf("invalid object ref %q", ref)
	}
	if _, err := hex.DecodeString(ref); err != nil {
		return fmt.Errorf("invalid object ref %q", ref)
	}
	return nil
}
