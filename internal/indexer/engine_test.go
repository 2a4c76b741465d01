package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/pkg/config"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
	"github.com/oscara1796/vecsearch/pkg/metrics"
)

type stubSource struct {
	mu    sync.Mutex
	docs  []index.Document
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) ([]index.Document, error) {
	s.mu.Lock()
	docs, err, delay := s.docs, s.err, s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return docs, err
}

func (s *stubSource) set(docs []index.Document, err error) {
	s.mu.Lock()
	s.docs, s.err = docs, err
	s.mu.Unlock()
}

func TestEngineNotReadyBeforeLoad(t *testing.T) {
	e := NewEngine(&stubSource{}, config.IndexConfig{}, 0, nil)
	assert.False(t, e.Ready())
	_, err := e.Snapshot()
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

func TestEngineReloadSwapsVersions(t *testing.T) {
	src := &stubSource{docs: []index.Document{{ID: "1", Text: "alpha beta"}}}
	m := metrics.New(nil)
	e := NewEngine(src, config.IndexConfig{Workers: 2}, time.Second, m)

	var swapped []uint64
	e.OnSwap(func(s *Snapshot) { swapped = append(swapped, s.Version) })

	first, err := e.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "stub", first.Source)

	src.set([]index.Document{{ID: "1", Text: "alpha"}, {ID: "2", Text: "gamma"}}, nil)
	second, err := e.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)

	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, current)
	assert.Equal(t, 2, current.Index.Len())
	assert.Equal(t, 1, first.Index.Len(), "old snapshot is untouched")

	assert.Equal(t, []uint64{1, 2}, swapped)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexVersion))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
}

func TestEngineListenerMayRegisterListener(t *testing.T) {
	e := NewEngine(&stubSource{docs: []index.Document{{ID: "1", Text: "alpha"}}}, config.IndexConfig{}, time.Second, nil)

	var late []uint64
	e.OnSwap(func(s *Snapshot) {
		if s.Version == 1 {
			e.OnSwap(func(s *Snapshot) { late = append(late, s.Version) })
		}
	})

	_, err := e.Reload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, late, "listeners added during a swap start with the next one")

	_, err = e.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, late)
}

func TestEngineFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	src := &stubSource{docs: []index.Document{{ID: "1", Text: "alpha"}}}
	e := NewEngine(src, config.IndexConfig{}, time.Second, nil)
	first, err := e.Reload(context.Background())
	require.NoError(t, err)

	src.set(nil, errors.New("connection refused"))
	_, err = e.Reload(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)

	src.set([]index.Document{{ID: "x", Text: "a"}, {ID: "x", Text: "b"}}, nil)
	_, err = e.Reload(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestEngineLoadTimeout(t *testing.T) {
	src := &stubSource{docs: []index.Document{{ID: "1", Text: "a"}}, delay: time.Second}
	e := NewEngine(src, config.IndexConfig{}, 20*time.Millisecond, nil)
	_, err := e.Reload(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.False(t, e.Ready())
}

func TestEngineConcurrentReadsDuringReload(t *testing.T) {
	src := &stubSource{docs: []index.Document{{ID: "1", Text: "alpha"}}}
	e := NewEngine(src, config.IndexConfig{}, time.Second, nil)
	_, err := e.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				snap, err := e.Snapshot()
				if err != nil || snap.Index.Len() != 1 {
					t.Errorf("inconsistent snapshot: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := e.Reload(context.Background())
		require.NoError(t, err)
	}
	cancel()
	wg.Wait()
}
