package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oscara1796/vecsearch/pkg/logger"
)

// Handler serves the aggregate over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     logger.WithComponent("analytics-handler"),
	}
}

type statsResponse struct {
	AggregatedStats
	GeneratedAt time.Time `json:"generated_at"`
}

// Stats writes the current aggregate. An optional ?top=N trims the ranked
// lists to their first N entries.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		stats.TopQueries = truncate(stats.TopQueries, n)
		stats.TopTerms = truncate(stats.TopTerms, n)
		stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, n)
	}
	h.writeJSON(w, http.StatusOK, statsResponse{AggregatedStats: stats, GeneratedAt: time.Now().UTC()})
}

func truncate(counts []QueryCount, n int) []QueryCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
