// Package store persists periodic snapshots of the search analytics
// aggregate so totals survive a restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oscara1796/vecsearch/internal/analytics"
	"github.com/oscara1796/vecsearch/pkg/database"
	"github.com/oscara1796/vecsearch/pkg/logger"
)

// Store writes snapshots to the analytics_snapshots table.
type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func New(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if s.db.Driver() == database.DriverSQLite {
		ddl = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		data        TEXT NOT NULL,
		captured_at TIMESTAMP NOT NULL
	)`
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO analytics_snapshots (data, captured_at) VALUES (%s, %s)`,
		s.db.Placeholder(1), s.db.Placeholder(2))
	if _, err := s.db.DB.ExecContext(ctx, query, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// Latest returns the most recent snapshot, or nil when none was saved yet.
func (s *Store) Latest(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// Run saves agg's stats every interval until ctx is cancelled, then writes
// one final snapshot. It blocks.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic analytics snapshots started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
