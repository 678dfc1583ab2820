// Package idempotency stores the outcome of requests sent with an Idempotency-Key
// so that retries replay the first response instead of applying the mutation again.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// Record is a completed response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store reserves keys and keeps completed responses.
//
// Begin returns (nil, nil) when the caller now owns the key, the stored Record
// when the key already completed, or ErrInProgress while another request owns it.
type Store interface {
	Begin(ctx context.Context, key string, lease time.Duration) (*Record, error)
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

const (
	keyPrefix     = "idempotency:"
	pendingMarker = "pending"
)

// RedisStore shares keys across API instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Begin(ctx context.Context, key string, lease time.Duration) (*Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}

		raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			// lease expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		if string(raw) == pendingMarker {
			return nil, ErrInProgress
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	}
	return nil, ErrInProgress
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

type memoryEntry struct {
	record  *Record
	expires time.Time
}

// MemoryStore keeps keys in process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Begin(ctx context.Context, key string, lease time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && e.expires.After(now) {
		if e.record == nil {
			return nil, ErrInProgress
		}
		rec := *e.record
		return &rec, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(lease)}
	return nil, nil
}

func (s *MemoryStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !e.expires.After(now) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{record: &rec, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// New picks the Redis store when a client is configured.
func New(client *redis.Client) Store {
	if client == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(client)
}
