package feed_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clipfeed/internal/cache"
)

// fakeCache is a hand-written in-memory cache.Store, mirroring
// RedisStore's tag-set semantics without a Redis dependency.
type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	tags   map[string]map[string]struct{} // tag -> set of keys
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string][]byte),
		tags:   make(map[string]map[string]struct{}),
	}
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

func (f *fakeCache) SetWithTags(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	if err := f.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tag := range tags {
		if f.tags[tag] == nil {
			f.tags[tag] = make(map[string]struct{})
		}
		f.tags[tag][key] = struct{}{}
	}
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCache) InvalidateByTags(_ context.Context, tags ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tag := range tags {
		for key := range f.tags[tag] {
			delete(f.values, key)
		}
		delete(f.tags, tag)
	}
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

var _ cache.Store = (*fakeCache)(nil)
