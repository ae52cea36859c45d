package credentials

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps credentials for the lifetime of the process.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	// credentials carry no local expiry, so nothing is ever evicted
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(_ context.Context, kind Kind) (string, bool, error) {
	v, ok := m.cache.Get(string(kind))
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *MemoryStore) Set(_ context.Context, kind Kind, value string) error {
	m.cache.Set(string(kind), value, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, kind Kind) error {
	m.cache.Delete(string(kind))
	return nil
}

func (m *MemoryStore) ClearAll(_ context.Context) error {
	m.cache.Flush()
	return nil
}
