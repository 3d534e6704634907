package storage

import (
	"context"
	"fmt"
	"sync"

	cryptoinfra "signet/internal/infra/crypto"
)

type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (s *Memory) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := cryptoinfra.SHA256Hex(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[ref]; !exists {
		s.objects[ref] = append([]byte(nil), data...)
	}
	return ref, nil
}

func (s *Memory) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s not found", ref)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of distinct stored objects.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
