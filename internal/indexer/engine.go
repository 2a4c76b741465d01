package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/pkg/config"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
	"github.com/oscara1796/vecsearch/pkg/resilience"
)

// Source yields the full corpus on every call.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]index.Document, error)
}

// Snapshot is one complete, immutable generation of the index.
type Snapshot struct {
	Index   *index.Index
	Version uint64
	BuiltAt time.Time
	Source  string
}

// Engine owns the current index snapshot. Reload builds a new index off to
// the side and swaps it in atomically, so readers always see one complete
// index.
type Engine struct {
	source      Source
	workers     int
	loadTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger

	current atomic.Pointer[Snapshot]
	reload  sync.Mutex
	version uint64

	listenersMu sync.RWMutex
	listeners   []func(*Snapshot)
}

func NewEngine(source Source, cfg config.IndexConfig, loadTimeout time.Duration, m *metrics.Metrics) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = index.DefaultWorkers()
	}
	return &Engine{
		source:      source,
		workers:     workers,
		loadTimeout: loadTimeout,
		metrics:     m,
		logger:      logger.WithComponent("indexer").With("source", source.Name()),
	}
}

// OnSwap registers fn to run after every successful snapshot swap.
func (e *Engine) OnSwap(fn func(*Snapshot)) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenersMu.Unlock()
}

// Reload loads the corpus, builds a fresh index and publishes it. On failure
// the previous snapshot stays current. Concurrent calls are serialised.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.reload.Lock()
	defer e.reload.Unlock()

	start := time.Now()
	var docs []index.Document
	err := resilience.WithTimeout(ctx, e.loadTimeout, "corpus load", func(ctx context.Context) error {
		var loadErr error
		docs, loadErr = e.source.Load(ctx)
		return loadErr
	})
	if err != nil {
		e.recordBuild("error", start)
		e.logger.Error("corpus load failed", "error", err)
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, fmt.Errorf("loading corpus: %w", err)
		}
		return nil, fmt.Errorf("loading corpus: %w: %w", apperrors.ErrCorpusUnavailable, err)
	}

	idx, err := index.BuildParallel(ctx, docs, e.workers)
	if err != nil {
		e.recordBuild("error", start)
		e.logger.Error("index build failed", "documents", len(docs), "error", err)
		return nil, fmt.Errorf("building index: %w", err)
	}

	e.version++
	snap := &Snapshot{
		Index:   idx,
		Version: e.version,
		BuiltAt: time.Now().UTC(),
		Source:  e.source.Name(),
	}
	previous := e.current.Swap(snap)
	e.recordBuild("ok", start)

	stats := idx.Stats()
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexTerms.Set(float64(stats.Terms))
		e.metrics.IndexVersion.Set(float64(snap.Version))
	}
	attrs := []any{
		"version", snap.Version,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"tokens", stats.Tokens,
		"workers", e.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if previous != nil {
		attrs = append(attrs, "previous_version", previous.Version)
	}
	e.logger.Info("index snapshot published", attrs...)

	e.listenersMu.RLock()
	listeners := slices.Clone(e.listeners)
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return snap, nil
}

// Snapshot returns the current snapshot, or ErrIndexNotReady before the
// first successful Reload.
func (e *Engine) Snapshot() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "no index has been built yet")
	}
	return snap, nil
}

func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

func (e *Engine) recordBuild(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
}
