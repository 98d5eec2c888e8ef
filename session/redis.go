package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripmesh/tripmesh/core"
)

// RedisStore persists threads as JSON documents in Redis, one key per thread.
// Mutations are serialized per process with WATCH-free read-modify-write under
// a short-lived lua-free model: the dialog engine runs one turn per thread at
// a time, so last-write-wins matches the rest of the system.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOptions configure the Redis thread store.
type RedisOptions struct {
	// TTL expires idle threads; zero keeps them forever.
	TTL time.Duration
	// Prefix namespaces thread keys (default "tripmesh:thread:").
	Prefix string
}

// NewRedisStore wraps an existing Redis client as a ThreadStore.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		TTL:    0,
		Prefix: "tripmesh:thread:",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisStore{client: client, ttl: opts.TTL, prefix: opts.Prefix}
}

func (s *RedisStore) key(threadID string) string { return s.prefix + threadID }

func (s *RedisStore) load(ctx context.Context, threadID string) (*core.Thread, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get thread %s: %w", threadID, err)
	}

	var th core.Thread
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	return &th, nil
}

func (s *RedisStore) save(ctx context.Context, th *core.Thread) error {
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("encode thread %s: %w", th.ID, err)
	}
	if err := s.client.Set(ctx, s.key(th.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set thread %s: %w", th.ID, err)
	}
	return nil
}

func (s *RedisStore) mutate(threadID string, fn func(*core.Thread)) error {
	ctx := context.Background()

	th, err := s.load(ctx, threadID)
	if err != nil {
		return err
	}
	if th == nil {
		th = core.NewThread(threadID)
	}

	fn(th)

	return s.save(ctx, th)
}

// Get returns an existing thread or creates one lazily.
func (s *RedisStore) Get(threadID string) (*core.Thread, error) {
	ctx := context.Background()

	th, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if th != nil {
		return th, nil
	}

	th = core.NewThread(threadID)
	if err := s.save(ctx, th); err != nil {
		return nil, err
	}
	return th, nil
}

// Create forces creation (or reset) of a thread with the given id.
func (s *RedisStore) Create(threadID string) (*core.Thread, error) {
	th := core.NewThread(threadID)
	if err := s.save(context.Background(), th); err != nil {
		return nil, err
	}
	return th, nil
}

// AppendEvent adds an event to the thread document.
func (s *RedisStore) AppendEvent(threadID string, ev core.Event) error {
	return s.mutate(threadID, func(th *core.Thread) { th.AddEvent(ev) })
}

// ApplyDelta merges a slot delta, non-empty values winning.
func (s *RedisStore) ApplyDelta(threadID string, delta map[string]string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.MergeSlots(delta) })
}

// RemoveSlots drops slot keys from the thread.
func (s *RedisStore) RemoveSlots(threadID string, keys []string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.RemoveSlots(keys) })
}

// SetReceipt replaces the thread's last-turn receipt.
func (s *RedisStore) SetReceipt(threadID string, r *core.Receipt) error {
	return s.mutate(threadID, func(th *core.Thread) { th.SetReceipt(r) })
}

// Clear resets the thread's slots, events and receipt.
func (s *RedisStore) Clear(threadID string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.Reset() })
}
