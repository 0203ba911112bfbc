package httpapi_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clipfeed/internal/cache"
)

// fakeCache is a hand-written in-memory cache.Store for exercising
// the HTTP handlers without a Redis dependency.
type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.values[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = data
	return nil
}

func (f *fakeCache) SetWithTags(ctx context.Context, key string, value interface{}, ttl time.Duration, _ ...string) error {
	return f.Set(ctx, key, value, ttl)
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCache) InvalidateByTags(context.Context, ...string) error { return nil }

var _ cache.Store = (*fakeCache)(nil)
