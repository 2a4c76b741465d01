// Package handler exposes search, index administration and cache
// administration over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oscara1796/vecsearch/internal/analytics"
	"github.com/oscara1796/vecsearch/internal/indexer"
	"github.com/oscara1796/vecsearch/internal/indexer/tokenizer"
	"github.com/oscara1796/vecsearch/internal/searcher/cache"
	"github.com/oscara1796/vecsearch/internal/searcher/executor"
	"github.com/oscara1796/vecsearch/internal/vector"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
	"github.com/oscara1796/vecsearch/pkg/logger"
)

// Handler serves the /api/v1 routes. The cache and collector are optional.
type Handler struct {
	engine    *indexer.Engine
	executor  *executor.Executor
	cache     *cache.QueryCache
	collector *analytics.Collector
	logger    *slog.Logger
}

func New(engine *indexer.Engine, exec *executor.Executor, queryCache *cache.QueryCache, collector *analytics.Collector) *Handler {
	return &Handler{
		engine:    engine,
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		logger:    logger.WithComponent("search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, apperrors.InvalidInputf("query parameter 'q' is required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.InvalidInputf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.Execute(ctx, query, limit)
	} else {
		result, err = h.executor.Execute(ctx, query, limit)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, r, err)
		return
	}

	h.track(ctx, result, tokenizer.Terms(query), cacheHit, time.Since(start))
	h.writeJSON(w, http.StatusOK, result)
}

const maxSearchBody = 1 << 20

type concordanceRequest struct {
	Concordance json.RawMessage `json:"concordance"`
	Limit       int             `json:"limit"`
}

// SearchConcordance handles POST /api/v1/search with a body such as
// {"concordance": {"mysql": 2, "backup": 1}, "limit": 5}. The concordance
// is ranked as given, without tokenizing. Results are not cached.
func (h *Handler) SearchConcordance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req concordanceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInputf("invalid request body: %v", err))
		return
	}
	if len(req.Concordance) == 0 {
		h.writeError(w, r, apperrors.InvalidInputf("field 'concordance' is required"))
		return
	}
	if req.Limit < 0 {
		h.writeError(w, r, apperrors.InvalidInputf("limit must be a positive integer"))
		return
	}
	c, err := vector.DecodeConcordance(req.Concordance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.executor.ExecuteConcordance(ctx, c, req.Limit)
	if err != nil {
		logger.FromContext(ctx).Error("concordance search failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	h.track(ctx, result, c.Terms(), false, time.Since(start))
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) track(ctx context.Context, result *executor.SearchResult, terms []string, cacheHit bool, latency time.Duration) {
	logger.FromContext(ctx).Info("search completed",
		"query", result.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"index_version", result.IndexVersion,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector == nil {
		return
	}
	h.collector.TrackSearch(analytics.SearchEvent{
		Query:        result.Query,
		Terms:        terms,
		TotalHits:    result.TotalHits,
		Returned:     len(result.Results),
		LatencyMs:    latency.Milliseconds(),
		CacheHit:     cacheHit,
		IndexVersion: result.IndexVersion,
		RequestID:    logger.RequestID(ctx),
	})
}

type indexStats struct {
	Version   uint64    `json:"version"`
	BuiltAt   time.Time `json:"built_at"`
	Source    string    `json:"source"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	Tokens    int64     `json:"tokens"`
}

func snapshotStats(snap *indexer.Snapshot) indexStats {
	stats := snap.Index.Stats()
	return indexStats{
		Version:   snap.Version,
		BuiltAt:   snap.BuiltAt,
		Source:    snap.Source,
		Documents: stats.Documents,
		Terms:     stats.Terms,
		Tokens:    stats.Tokens,
	}
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotStats(snap))
}

// Reload handles POST /api/v1/index/reload. Cached results are dropped by
// the cache's swap listener, not here.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("index reload failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotStats(snap))
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError maps err to its HTTP status. Messages of 500 responses are
// replaced so internal details stay in the logs.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeJSON(w, status, errorResponse{Error: message, RequestID: logger.RequestID(r.Context())})
}
