package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces fingerprint entries in Redis.
const keyPrefix = "prospects:fp:"

// RedisStore keeps fingerprint entries in Redis so multiple service
// instances share one reuse cache. TTL eviction is delegated to Redis
// key expiry; capacity bounding is delegated to the server's maxmemory
// policy.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed fingerprint store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(fingerprint string) string {
	return keyPrefix + fingerprint
}

// Get returns the entry for a fingerprint, or false once Redis has
// expired it.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, redisKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", unmarshalErr)
	}
	return entry, true, nil
}

// Put inserts or replaces the entry for a fingerprint.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if setErr := s.client.Set(ctx, redisKey(entry.Fingerprint), data, s.ttl).Err(); setErr != nil {
		return fmt.Errorf("put cache entry: %w", setErr)
	}
	return nil
}

// Touch refreshes the entry's last-used time without extending the
// TTL, which is anchored to creation time.
func (s *RedisStore) Touch(ctx context.Context, fingerprint string) error {
	return s.update(ctx, fingerprint, func(entry *Entry) {
		entry.LastUsedAt = time.Now()
	})
}

// UpdateStatus records a remote status transition on the entry.
func (s *RedisStore) UpdateStatus(ctx context.Context, fingerprint string, status EntryStatus) error {
	return s.update(ctx, fingerprint, func(entry *Entry) {
		entry.Status = status
	})
}

// update applies a mutation to a stored entry, preserving its
// remaining TTL. Missing entries are a no-op.
func (s *RedisStore) update(ctx context.Context, fingerprint string, mutate func(*Entry)) error {
	key := redisKey(fingerprint)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return fmt.Errorf("decode cache entry: %w", unmarshalErr)
	}

	mutate(&entry)

	updated, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		return fmt.Errorf("encode cache entry: %w", marshalErr)
	}

	return s.client.Set(ctx, key, updated, redis.KeepTTL).Err()
}

// Remove evicts the entry for a fingerprint.
func (s *RedisStore) Remove(ctx context.Context, fingerprint string) error {
	if err := s.client.Del(ctx, redisKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached fingerprints.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan cache entries: %w", err)
		}
		count += len(keys)

		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
