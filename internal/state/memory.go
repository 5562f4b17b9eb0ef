package state

import (
	"context"
	"sync"
)

// Memory is an in-process Store, used by tests and dry runs.
type Memory struct {
	ints
	m *memoryBackend
}

type memoryBackend struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	b := &memoryBackend{values: make(map[string]string)}
	return &Memory{ints: ints{backend: b}, m: b}
}

// Writes counts successful puts.
func (s *Memory) Writes() int {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.writes
}

func (b *memoryBackend) get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *memoryBackend) put(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	b.writes++
	return nil
}

var _ Store = (*Memory)(nil)
