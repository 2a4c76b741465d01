package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesPrivateRegistry(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.CacheHitsTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.CacheHitsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHitsTotal))
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	m.IndexVersion.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `vecsearch_search_queries_total{result_type="hit"} 1`))
	assert.True(t, strings.Contains(text, "vecsearch_index_version 3"))
}
