// Package corpus loads the documents to index from the built-in sample, a
// YAML or JSON-lines file, or a SQL table, and watches corpus files for
// changes.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/database"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

type Source interface {
	Name() string
	Load(ctx context.Context) ([]index.Document, error)
}

// Open builds the Source selected by cfg.Corpus. The returned close function
// releases any connection the source holds and is never nil.
func Open(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Corpus.Source {
	case "", config.CorpusSample:
		return SampleSource{}, noop, nil
	case config.CorpusFile:
		src, err := NewFileSource(cfg.Corpus.Path)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case config.CorpusSQL:
		client, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %w", apperrors.ErrCorpusUnavailable, err)
		}
		return NewSQLSource(client, cfg.Corpus.Query), client.Close, nil
	default:
		return nil, noop, apperrors.InvalidInputf("unknown corpus source %q", cfg.Corpus.Source)
	}
}

// documentID renders an identifier decoded from YAML, JSON or SQL as a
// string. Integers use their decimal form; a nil id falls back to the
// document's position (list index, or zero-based line for JSON lines).
func documentID(raw any, position int) (string, error) {
	switch v := raw.(type) {
	case nil:
		return strconv.Itoa(position), nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", apperrors.InvalidInputf("document %d: non-integer id %v", position, v)
		}
		if math.Abs(v) >= 1<<63 {
			return "", apperrors.InvalidInputf("document %d: id %v out of range", position, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return strconv.FormatInt(n, 10), nil
		}
		return "", apperrors.InvalidInputf("document %d: non-integer id %s", position, v)
	default:
		return "", apperrors.InvalidInputf("document %d: unsupported id type %T", position, raw)
	}
}
