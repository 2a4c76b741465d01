package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscara1796/vecsearch/pkg/config"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

func newSQLite(t *testing.T) *Client {
	t.Helper()
	c, err := New(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedBackend)
}

func TestSQLiteOpens(t *testing.T) {
	c := newSQLite(t)
	assert.Equal(t, DriverSQLite, c.Driver())
	require.NoError(t, c.Ping(context.Background()))

	ctx := context.Background()
	_, err := c.DB.ExecContext(ctx, `CREATE TABLE documents (id INTEGER PRIMARY KEY, text TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = c.DB.ExecContext(ctx, `INSERT INTO documents (id, text) VALUES (`+c.Placeholder(1)+`, `+c.Placeholder(2)+`)`, 1, "kept")
	require.NoError(t, err)

	var count int
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", newSQLite(t).Placeholder(2))
	assert.Equal(t, "$2", (&Client{driver: DriverPostgres}).Placeholder(2))
}
