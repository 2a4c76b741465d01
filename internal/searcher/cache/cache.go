// Package cache memoises search results per index version. Keys embed the
// snapshot version, so a reload never serves results ranked against an
// older index.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oscara1796/vecsearch/internal/indexer"
	"github.com/oscara1796/vecsearch/internal/indexer/tokenizer"
	"github.com/oscara1796/vecsearch/internal/searcher/executor"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
	"github.com/oscara1796/vecsearch/pkg/resilience"
)

const keyPrefix = "vecsearch:search:"

// Searcher is the part of *executor.Executor the cache drives.
type Searcher interface {
	Snapshot() (*indexer.Snapshot, error)
	Limit(requested int) int
	ExecuteOn(ctx context.Context, snap *indexer.Snapshot, query string, limit int) *executor.SearchResult
}

type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	Total        int64   `json:"total"`
	HitRate      float64 `json:"hit_rate"`
	Keys         int64   `json:"keys"`
	BreakerState string  `json:"breaker_state"`
}

type QueryCache struct {
	store    Store
	searcher Searcher
	ttl      time.Duration
	group    singleflight.Group
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
	errors   atomic.Int64
}

func New(store Store, searcher Searcher, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure:        func(err error) bool { return !errors.Is(err, ErrMiss) },
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		store:    store,
		searcher: searcher,
		ttl:      ttl,
		breaker:  resilience.NewCircuitBreaker("query-cache", cbCfg),
		metrics:  m,
		logger:   logger.WithComponent("query-cache"),
	}
}

// Execute returns the cached result for (current version, query, limit) or
// computes and stores it. Concurrent misses for the same key share one
// computation. Store failures degrade to uncached ranking.
func (c *QueryCache) Execute(ctx context.Context, query string, limit int) (*executor.SearchResult, bool, error) {
	start := time.Now()
	snap, err := c.searcher.Snapshot()
	if err != nil {
		return nil, false, err
	}
	limit = c.searcher.Limit(limit)
	key := Key(snap.Version, query, limit)

	if result, ok := c.get(ctx, key); ok {
		result.Query = query
		c.hit()
		c.observe("hit", start)
		return result, true, nil
	}
	c.miss()

	val, _, shared := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.get(ctx, key); ok {
			return result, nil
		}
		result := c.searcher.ExecuteOn(ctx, snap, query, limit)
		c.set(ctx, key, result)
		return result, nil
	})
	c.observe("miss", start)
	if shared {
		c.logger.Debug("shared in-flight computation", "key", key)
	}
	out := *val.(*executor.SearchResult)
	out.Query = query
	return &out, false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.store.Get(ctx, key)
		return getErr
	})
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.errors.Add(1)
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.errors.Add(1)
		c.logger.Error("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	}); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) observe(status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// OnSwap drops results computed against older snapshots. Register it with
// indexer.Engine.OnSwap.
func (c *QueryCache) OnSwap(snap *indexer.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Invalidate(ctx); err != nil {
		c.logger.Warn("cache invalidation after reload failed", "version", snap.Version, "error", err)
	}
}

func (c *QueryCache) Stats(ctx context.Context) Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Hits:         hits,
		Misses:       misses,
		Errors:       c.errors.Load(),
		Total:        hits + misses,
		BreakerState: c.breaker.GetState().String(),
	}
	if s.Total > 0 {
		s.HitRate = float64(hits) / float64(s.Total)
	}
	if keys, err := c.store.Count(ctx, keyPrefix+"*"); err == nil {
		s.Keys = keys
	} else {
		c.logger.Warn("counting cache keys failed", "error", err)
	}
	return s
}

// Key derives the cache key for a query. Queries with the same multiset of
// case-folded terms rank identically and share a key.
func Key(version uint64, query string, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d", NormalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sv%d:%x", keyPrefix, version, hash[:16])
}

func NormalizeQuery(query string) string {
	terms := tokenizer.Terms(query)
	sort.Strings(terms)
	return strings.Join(terms, " ")
}
