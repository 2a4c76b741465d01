// Package executor runs search queries against the engine's current index
// snapshot.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oscara1796/vecsearch/internal/indexer"
	"github.com/oscara1796/vecsearch/internal/searcher/ranker"
	"github.com/oscara1796/vecsearch/internal/vector"
	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
	"github.com/oscara1796/vecsearch/pkg/tracing"
)

type SearchResult struct {
	Query        string         `json:"query"`
	TotalHits    int            `json:"total_hits"`
	Results      []ranker.Match `json:"results"`
	IndexVersion uint64         `json:"index_version"`
}

type Executor struct {
	engine  *indexer.Engine
	cfg     config.SearchConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(engine *indexer.Engine, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		engine:  engine,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("query-executor"),
	}
}

// Snapshot returns the snapshot the next query would run against.
func (e *Executor) Snapshot() (*indexer.Snapshot, error) {
	return e.engine.Snapshot()
}

// Limit maps a requested limit onto the configured bounds: zero or less
// selects the default, and anything above MaxResults is capped.
func (e *Executor) Limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	return limit
}

// Execute ranks query against the current snapshot.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	snap, err := e.engine.Snapshot()
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	result := e.ExecuteOn(ctx, snap, query, limit)
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues("bypass").Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// ExecuteOn ranks query against a specific snapshot, so callers that key
// results by version compute against the version they looked up.
func (e *Executor) ExecuteOn(ctx context.Context, snap *indexer.Snapshot, query string, limit int) *SearchResult {
	return e.rank(ctx, snap, query, vector.BuildConcordance(query), limit)
}

// ExecuteConcordance ranks a caller-supplied concordance against the current
// snapshot. The result's Query holds the concordance terms in sorted order.
func (e *Executor) ExecuteConcordance(ctx context.Context, c vector.Concordance, limit int) (*SearchResult, error) {
	start := time.Now()
	snap, err := e.engine.Snapshot()
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	result := e.rank(ctx, snap, strings.Join(c.Terms(), " "), c, limit)
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues("bypass").Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (e *Executor) rank(ctx context.Context, snap *indexer.Snapshot, query string, c vector.Concordance, limit int) *SearchResult {
	ctx, span := tracing.StartChildSpan(ctx, "search.rank")
	limit = e.Limit(limit)

	matches, total := ranker.RankConcordanceWithTotal(c, snap.Index, ranker.Options{
		ExcerptLength: e.cfg.ExcerptLength,
		Limit:         limit,
	})

	span.SetAttr("index_version", snap.Version)
	span.SetAttr("query_terms", c.Len())
	span.SetAttr("total_hits", total)
	span.End()

	if total == 0 {
		e.countQuery("zero_result")
	} else {
		e.countQuery("hit")
	}
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(matches)))
	}
	e.logger.Debug("query executed",
		"request_id", logger.RequestID(ctx),
		"query", query,
		"index_version", snap.Version,
		"total_hits", total,
		"returned", len(matches),
		"limit", limit,
	)
	return &SearchResult{
		Query:        query,
		TotalHits:    total,
		Results:      matches,
		IndexVersion: snap.Version,
	}
}

func (e *Executor) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}
