package credstore

import (
	"context"
	"maps"
	"sync"
)

// Backend is a string key/value storage area.
// Implementations must be safe for concurrent use
type Backend interface {
	// Get returns ok=false when the key is absent
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetMany writes all values or none of them
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes keys. Missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryBackend keeps values in process memory and is lost when the process exits
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	return v, ok, nil
}

func (b *MemoryBackend) SetMany(_ context.Context, values map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	maps.Copy(b.values, values)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range keys {
		delete(b.values, k)
	}
	return nil
}

// Len returns number of stored keys
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
