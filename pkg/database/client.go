// Package database opens the SQL connection used by the sql corpus source.
// Postgres is served by lib/pq and sqlite by the pure-Go modernc driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/oscara1796/vecsearch/pkg/config"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Client struct {
	DB     *sql.DB
	driver string
}

// New opens and pings a connection pool for cfg.Driver.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedBackend, driver)
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if driver == DriverSQLite {
		// An in-memory sqlite database lives only as long as its connection.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}
	return &Client{DB: db, driver: driver}, nil
}

func (c *Client) Driver() string {
	return c.driver
}

// Placeholder returns the n-th (1-based) bind parameter marker for the
// driver: $n for postgres, ? for sqlite.
func (c *Client) Placeholder(n int) string {
	if c.driver == DriverSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
