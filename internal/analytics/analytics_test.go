package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/kafka"
	"github.com/oscara1796/vecsearch/pkg/metrics"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return p.err
}

func (p *recordingPublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func TestAggregatorRecordSearch(t *testing.T) {
	agg := NewAggregator(2)
	agg.RecordSearch(SearchEvent{Query: "mysql backup", Terms: []string{"mysql", "backup"}, TotalHits: 3, LatencyMs: 10})
	agg.RecordSearch(SearchEvent{Query: "mysql backup", Terms: []string{"mysql", "backup"}, TotalHits: 3, LatencyMs: 30, CacheHit: true})
	agg.RecordSearch(SearchEvent{Query: "xylophone", Terms: []string{"xylophone"}, TotalHits: 0, LatencyMs: 20})
	agg.RecordReload(ReloadEvent{Version: 4})
	agg.RecordReload(ReloadEvent{Version: 2})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 1.0/3.0, stats.ZeroResultRate, 1e-9)
	assert.Equal(t, int64(2), stats.IndexReloads)
	assert.Equal(t, uint64(4), stats.IndexVersion)
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(20), stats.P50LatencyMs)
	assert.Equal(t, int64(30), stats.P99LatencyMs)
	assert.Equal(t, []QueryCount{{Query: "mysql backup", Count: 2}, {Query: "xylophone", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "backup", Count: 2}, {Query: "mysql", Count: 2}}, stats.TopTerms)
	assert.Equal(t, []QueryCount{{Query: "xylophone", Count: 1}}, stats.ZeroResultQueries)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(1)
	for i := 0; i < latencyWindow+50; i++ {
		agg.RecordSearch(SearchEvent{Query: "q", TotalHits: 1, LatencyMs: int64(i)})
	}
	agg.mu.RLock()
	assert.Len(t, agg.latencies, latencyWindow)
	agg.mu.RUnlock()
	assert.Equal(t, int64(latencyWindow+50), agg.Stats().TotalSearches)
}

func TestAggregatorHandleMessage(t *testing.T) {
	agg := NewAggregator(5)
	ctx := context.Background()

	search, err := json.Marshal(SearchEvent{Type: EventSearch, Query: "git", TotalHits: 1})
	require.NoError(t, err)
	reload, err := json.Marshal(ReloadEvent{Type: EventReload, Version: 7})
	require.NoError(t, err)

	require.NoError(t, agg.HandleMessage(ctx, nil, search))
	require.NoError(t, agg.HandleMessage(ctx, nil, reload))
	require.NoError(t, agg.HandleMessage(ctx, nil, []byte(`garbage`)))
	require.NoError(t, agg.HandleMessage(ctx, nil, []byte(`{"type":"mystery"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, uint64(7), stats.IndexVersion)
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator(5)
	agg.Restore(AggregatedStats{
		TotalSearches: 10,
		CacheHits:     4,
		CacheMisses:   6,
		TopQueries:    []QueryCount{{Query: "mysql", Count: 7}},
	})
	agg.RecordSearch(SearchEvent{Query: "mysql", TotalHits: 1})

	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalSearches)
	assert.Equal(t, []QueryCount{{Query: "mysql", Count: 8}}, stats.TopQueries)
}

func TestCollectorFeedsAggregatorWithoutKafka(t *testing.T) {
	agg := NewAggregator(5)
	c := NewCollector(agg, config.AnalyticsConfig{BatchSize: 2, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())

	c.TrackSearch(SearchEvent{Query: "a", TotalHits: 1})
	c.TrackSearch(SearchEvent{Query: "b", TotalHits: 0})
	c.TrackReload(ReloadEvent{Version: 3})
	c.Close()

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, uint64(3), stats.IndexVersion)
}

func TestCollectorBatchesAndStampsEvents(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 2, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())

	c.TrackSearch(SearchEvent{Query: "one"})
	c.TrackSearch(SearchEvent{Query: "two"})
	c.TrackSearch(SearchEvent{Query: "three"})
	c.Close()

	events := pub.events()
	require.Len(t, events, 3)
	first, ok := events[0].Value.(SearchEvent)
	require.True(t, ok)
	assert.Equal(t, EventSearch, first.Type)
	assert.Equal(t, "one", events[0].Key)
	assert.False(t, first.Timestamp.IsZero())

	pub.mu.Lock()
	assert.Len(t, pub.batches[0], 2)
	pub.mu.Unlock()

	c.TrackSearch(SearchEvent{Query: "after close"})
	assert.Len(t, pub.events(), 3)
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 100, FlushInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.TrackSearch(SearchEvent{Query: "pending"})
	cancel()
	c.Close()

	assert.Len(t, pub.events(), 1)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	m := metrics.New(nil)
	c := NewCollector(&recordingPublisher{}, config.AnalyticsConfig{BufferSize: 1}, m)
	c.TrackSearch(SearchEvent{Query: "kept"})
	c.TrackSearch(SearchEvent{Query: "dropped"})
	c.TrackSearch(SearchEvent{Query: "dropped too"})
	assert.Equal(t, int64(2), c.Dropped())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalyticsDropped))
}

func TestCollectorPublishErrorIsLogged(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 1, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	c.TrackSearch(SearchEvent{Query: "x"})
	c.Close()
	assert.Len(t, pub.events(), 1)
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator(5)
	agg.RecordSearch(SearchEvent{Query: "a", TotalHits: 1})
	agg.RecordSearch(SearchEvent{Query: "b", TotalHits: 1})
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		TotalSearches int64        `json:"total_searches"`
		TopQueries    []QueryCount `json:"top_queries"`
		GeneratedAt   time.Time    `json:"generated_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.TotalSearches)
	assert.Equal(t, []QueryCount{{Query: "a", Count: 1}}, body.TopQueries)
	assert.False(t, body.GeneratedAt.IsZero())

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
