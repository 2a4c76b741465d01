package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oscara1796/vecsearch/pkg/kafka"
	"github.com/oscara1796/vecsearch/pkg/logger"
)

const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	ZeroResultRate    float64      `json:"zero_result_rate"`
	IndexReloads      int64        `json:"index_reloads"`
	IndexVersion      uint64       `json:"index_version"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and reload events into running totals. Latency
// percentiles cover the most recent searches only.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	reloads           int64
	indexVersion      uint64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	termCounts        map[string]int64
	zeroResultQueries map[string]int64
	topN              int
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		termCounts:        make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		topN:              topN,
		startTime:         time.Now(),
		now:               time.Now,
		logger:            logger.WithComponent("analytics-aggregator"),
	}
}

// HandleMessage is a kafka.MessageHandler. Undecodable messages are logged
// and skipped so one bad record cannot wedge the consumer.
func (a *Aggregator) HandleMessage(_ context.Context, _ []byte, value []byte) error {
	if err := a.apply(value); err != nil {
		a.logger.Error("failed to decode analytics event", "error", err)
	}
	return nil
}

// PublishBatch feeds events straight into the aggregate, letting a Collector
// run without Kafka.
func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return fmt.Errorf("marshaling analytics event: %w", err)
		}
		if err := a.apply(value); err != nil {
			a.logger.Error("failed to apply analytics event", "error", err)
		}
	}
	return nil
}

func (a *Aggregator) apply(value []byte) error {
	env, err := kafka.DecodeJSON[envelope](value)
	if err != nil {
		return err
	}
	switch env.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.RecordSearch(event)
	case EventReload:
		event, err := kafka.DecodeJSON[ReloadEvent](value)
		if err != nil {
			return err
		}
		a.RecordReload(event)
	default:
		return fmt.Errorf("unknown analytics event type %q", env.Type)
	}
	return nil
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	a.queryCounts[event.Query]++
	for _, term := range event.Terms {
		a.termCounts[term]++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) RecordReload(event ReloadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	if event.Version > a.indexVersion {
		a.indexVersion = event.Version
	}
}

// Restore seeds the running totals from a persisted snapshot, typically the
// latest one saved before a restart.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += stats.TotalSearches
	a.cacheHits += stats.CacheHits
	a.cacheMisses += stats.CacheMisses
	a.zeroResults += stats.ZeroResultCount
	a.reloads += stats.IndexReloads
	for _, qc := range stats.TopQueries {
		a.queryCounts[qc.Query] += qc.Count
	}
	for _, qc := range stats.TopTerms {
		a.termCounts[qc.Query] += qc.Count
	}
	for _, qc := range stats.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] += qc.Count
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		IndexReloads:    a.reloads,
		IndexVersion:    a.indexVersion,
	}
	if a.totalSearches > 0 {
		stats.ZeroResultRate = float64(a.zeroResults) / float64(a.totalSearches)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopTerms = topN(a.termCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending so equal counts
// come out in a stable order.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
