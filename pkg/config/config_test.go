package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, CorpusSample, cfg.Corpus.Source)
	assert.Equal(t, 100, cfg.Search.ExcerptLength)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Analytics.Enabled)
	assert.False(t, cfg.Analytics.Persist)
	assert.Equal(t, 10, cfg.Analytics.TopN)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecsearch.yaml")
	data := `
server:
  port: 9000
corpus:
  source: file
  path: ./docs.yaml
  watch: true
search:
  defaultLimit: 5
  excerptLength: 40
redis:
  enabled: true
  cacheTTL: 2m
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, CorpusFile, cfg.Corpus.Source)
	assert.Equal(t, "./docs.yaml", cfg.Corpus.Path)
	assert.True(t, cfg.Corpus.Watch)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 40, cfg.Search.ExcerptLength)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VS_SERVER_PORT", "7070")
	t.Setenv("VS_CORPUS_SOURCE", "sql")
	t.Setenv("VS_DATABASE_DRIVER", "sqlite")
	t.Setenv("VS_DATABASE_PATH", "/tmp/corpus.db")
	t.Setenv("VS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("VS_INDEX_WORKERS", "3")
	t.Setenv("VS_ANALYTICS_PERSIST", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, CorpusSQL, cfg.Corpus.Source)
	assert.Equal(t, "/tmp/corpus.db", cfg.Database.DSN())
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.True(t, cfg.Analytics.Persist)
}

func TestValidateRejectsBadCorpus(t *testing.T) {
	cfg := Default()
	cfg.Corpus.Source = CorpusFile
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Corpus.Source = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Corpus.Source = CorpusSQL
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.ExcerptLength = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRateLimit(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Window = 0
	assert.ErrorContains(t, cfg.Validate(), "rateLimit.window")

	cfg = Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerWindow = 0
	assert.ErrorContains(t, cfg.Validate(), "rateLimit.requestsPerWindow")

	cfg = Default()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Window = 0
	cfg.RateLimit.RequestsPerWindow = 0
	assert.NoError(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost port=5432 user=vecsearch password=localdev dbname=vecsearch sslmode=disable",
		cfg.Database.DSN(),
	)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
