package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented TTL key/value backend.
type Store interface {
	// Get returns the stored value. ok is false on a miss or expiry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryStore keeps entries in a fixed-size in-process freecache.
// freecache rejects entries larger than 1/1024 of its size, so those are kept
// in a TTL map beside it and swept when they expire.
type MemoryStore struct {
	cache    *freecache.Cache
	maxEntry int

	mu    sync.Mutex
	large map[string]largeEntry
	now   func() time.Time
}

type largeEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore allocates sizeMB megabytes of cache memory.
func NewMemoryStore(sizeMB int) *MemoryStore {
	size := sizeMB * 1024 * 1024
	return &MemoryStore{
		cache:    freecache.NewCache(size),
		maxEntry: size / 1024,
		large:    make(map[string]largeEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.cache.Get([]byte(key))
	if err == nil {
		return value, true, nil
	}
	if !errors.Is(err, freecache.ErrNotFound) {
		return nil, false, fmt.Errorf("reading memory cache: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.large[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.large, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	if len(key)+len(value) > s.maxEntry {
		s.cache.Del([]byte(key))
		s.setLarge(key, value, time.Duration(seconds)*time.Second)
		return nil
	}

	if err := s.cache.Set([]byte(key), value, seconds); err != nil {
		return fmt.Errorf("writing memory cache: %w", err)
	}
	s.mu.Lock()
	delete(s.large, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) setLarge(key string, value []byte, ttl time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.large {
		if !now.Before(e.expiresAt) {
			delete(s.large, k)
		}
	}
	s.large[key] = largeEntry{value: value, expiresAt: now.Add(ttl)}
}

// RedisStore keeps entries in Redis so they are shared between instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts)), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "scrobble-ledger:"}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading redis cache: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing redis cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NoopStore never stores anything; every lookup misses.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
