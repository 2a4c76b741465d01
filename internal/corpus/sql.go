package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/pkg/database"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
	"github.com/oscara1796/vecsearch/pkg/resilience"
)

const DefaultQuery = "SELECT id, text FROM documents ORDER BY id"

// SQLSource runs a two-column (id, text) query. Rows are indexed in the
// order the query returns them.
type SQLSource struct {
	client *database.Client
	query  string
	retry  resilience.RetryConfig
}

func NewSQLSource(client *database.Client, query string) *SQLSource {
	if query == "" {
		query = DefaultQuery
	}
	return &SQLSource{
		client: client,
		query:  query,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			Retryable: func(err error) bool {
				return !errors.Is(err, apperrors.ErrInvalidInput) && !errors.Is(err, context.Canceled)
			},
		},
	}
}

func (s *SQLSource) Name() string { return "sql:" + s.client.Driver() }

func (s *SQLSource) Load(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document
	err := resilience.Retry(ctx, "sql corpus load", s.retry, func(ctx context.Context) error {
		var err error
		docs, err = s.load(ctx)
		return err
	})
	return docs, err
}

func (s *SQLSource) load(ctx context.Context) ([]index.Document, error) {
	rows, err := s.client.DB.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var docs []index.Document
	for rows.Next() {
		var (
			rawID any
			text  string
		)
		if err := rows.Scan(&rawID, &text); err != nil {
			return nil, fmt.Errorf("scanning corpus row %d: %w", len(docs), err)
		}
		id, err := documentID(rawID, len(docs))
		if err != nil {
			return nil, err
		}
		docs = append(docs, index.Document{ID: id, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return docs, nil
}
