// Package cache implements the Cache Layer (C1): a Redis-backed,
// best-effort cache-aside store with tag-based invalidation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL tiers, configurable via internal/config but defaulted here to
// match spec.md §6.
const (
	ShortTTL    = 5 * time.Minute
	MediumTTL   = 30 * time.Minute
	LongTTL     = time.Hour
	VeryLongTTL = 2 * time.Hour

	// PrefetchEpisodeTTL bounds the title-level prefetch plan (no
	// per-user overlay), shared across every viewer of a title.
	PrefetchEpisodeTTL = 20 * time.Minute
	// PrefetchUserTTL bounds the per-user progress-overlaid prefetch
	// plan; shorter than PrefetchEpisodeTTL since it goes stale the
	// moment the user's progress advances.
	PrefetchUserTTL = 10 * time.Minute
)

// Store is the Cache Layer's client-facing interface. Implementations
// must be best-effort: a Get miss or a backend error both resolve to
// ErrMiss on read. Write methods return their errors; the Core discards
// them, so a failed cache write degrades to the DocumentStore rather
// than failing the request.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetWithTags(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, keys ...string) error
	InvalidateByTags(ctx context.Context, tags ...string) error
}

// ErrMiss is returned by Get on a cache miss.
var ErrMiss = fmt.Errorf("cache: miss")

// RedisStore is the Store implementation backing production use.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a RedisStore over an already-connected client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Dial connects to Redis at addr and pings it before returning.
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", addr, err)
	}
	log.Printf("cache: connected to redis at %s", addr)
	return NewRedisStore(client, prefix), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) formatKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func tagKey(prefix, tag string) string {
	k := "tag:" + tag
	if prefix != "" {
		return prefix + ":" + k
	}
	return k
}

// Get retrieves and unmarshals the value at key into dest. Returns
// ErrMiss on a cache miss (key absent); any other Redis or unmarshal
// error is logged and also reported as ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, s.formatKey(key)).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		log.Printf("cache: get %s: %v", key, err)
		return ErrMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("cache: unmarshal %s: %v", key, err)
		return ErrMiss
	}
	return nil
}

// Set stores value at key with the given ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.formatKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// SetWithTags stores value at key and registers key as a member of
// every tag's set, so a later InvalidateByTags(tag) evicts it. Tag
// sets get a TTL slightly longer than the entry's own, so they never
// outlive the entries they track by much.
func (s *RedisStore) SetWithTags(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	if err := s.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	fullKey := s.formatKey(key)
	tagTTL := ttl + 5*time.Minute
	pipe := s.client.Pipeline()
	for _, tag := range tags {
		tk := tagKey(s.prefix, tag)
		pipe.SAdd(ctx, tk, fullKey)
		pipe.Expire(ctx, tk, tagTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: tag %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	formatted := make([]string, len(keys))
	for i, k := range keys {
		formatted[i] = s.formatKey(k)
	}
	if err := s.client.Del(ctx, formatted...).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// InvalidateByTags deletes every key that was tagged with any of tags,
// then the tag sets themselves.
func (s *RedisStore) InvalidateByTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tk := tagKey(s.prefix, tag)
		members, err := s.client.SMembers(ctx, tk).Result()
		if err != nil {
			return fmt.Errorf("cache: invalidate tag %s: %w", tag, err)
		}
		if len(members) > 0 {
			if err := s.client.Del(ctx, members...).Err(); err != nil {
				return fmt.Errorf("cache: invalidate tag %s members: %w", tag, err)
			}
		}
		if err := s.client.Del(ctx, tk).Err(); err != nil {
			return fmt.Errorf("cache: invalidate tag %s set: %w", tag, err)
		}
	}
	return nil
}
