package cache

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"

	pkgredis "github.com/oscara1796/vecsearch/pkg/redis"
)

// ErrMiss reports a key that is absent or expired.
var ErrMiss = pkgredis.ErrNotFound

// Store is the key/value backend of the query cache. *redis.Client
// satisfies it; MemoryStore serves single-process deployments.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	Count(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// DefaultCleanupInterval is how often MemoryStore evicts expired entries.
const DefaultCleanupInterval = time.Minute

// MemoryStore is an in-process Store backed by go-cache, whose janitor
// evicts expired entries in the background. Patterns use path.Match glob
// syntax, which agrees with Redis for the "prefix*" patterns the cache
// issues.
type MemoryStore struct {
	items *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanup(DefaultCleanupInterval)
}

// NewMemoryStoreWithCleanup is NewMemoryStore with a custom janitor
// interval.
func NewMemoryStoreWithCleanup(interval time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, interval)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	var deleted int64
	for key := range s.items.Items() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return deleted, err
		}
		if ok {
			s.items.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// Count reports live keys matching pattern. Items already skips entries
// that expired but have not been evicted yet.
func (s *MemoryStore) Count(_ context.Context, pattern string) (int64, error) {
	var n int64
	for key := range s.items.Items() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// size reports every stored entry, including expired ones the janitor has
// not evicted yet.
func (s *MemoryStore) size() int {
	return s.items.ItemCount()
}
