// Package memory provides an in-memory state tier for tests and for
// running without external stores.
package memory

import (
	"context"
	"sync"
)

// Tier is a mutex-guarded map implementing ports.StateTier.
type Tier struct {
	mu   sync.Mutex
	data map[string]string
}

// NewTier returns an empty in-memory tier.
func NewTier() *Tier {
	return &Tier{data: make(map[string]string)}
}

func (t *Tier) Get(_ context.Context, key string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	val, ok := t.data[key]
	return val, ok, nil
}

func (t *Tier) Set(_ context.Context, key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[key] = value
	return nil
}

func (t *Tier) Delete(_ context.Context, keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.data, k)
	}
	return nil
}

// Len reports the number of stored keys. Test helper.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}
