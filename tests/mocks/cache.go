package mocks

import (
	"context"
	"encoding/json"
	"sync"

	sharedCache "github.com/davicafu/hexasync/internal/shared/infra/platform/cache"
)

// RecordingCache guarda JSON en un mapa y cuenta operaciones. Err, si no es
// nil, hace fallar todas las llamadas.
type RecordingCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	Err     error
	Sets    int
	Deletes int
}

var _ sharedCache.Cache = (*RecordingCache)(nil)

func NewRecordingCache() *RecordingCache {
	return &RecordingCache{store: make(map[string][]byte)}
}

func (c *RecordingCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *RecordingCache) Set(_ context.Context, key string, val interface{}, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.store[key] = data
	c.Sets++
	return nil
}

func (c *RecordingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	delete(c.store, key)
	c.Deletes++
	return nil
}
