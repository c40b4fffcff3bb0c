// Package postgres stores the history of solved challenges in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver for database/sql
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS solves (
	id                   BIGSERIAL PRIMARY KEY,
	endpoint             TEXT        NOT NULL,
	website_id           TEXT        NOT NULL,
	random_nonce         TEXT        NOT NULL,
	challenge_param      TEXT        NOT NULL,
	recommended_attempts BIGINT      NOT NULL,
	nonce                BIGINT      NOT NULL,
	threads              INTEGER     NOT NULL,
	multithreaded        BOOLEAN     NOT NULL,
	estimated_attempts   BIGINT      NOT NULL,
	hash_rate            BIGINT      NOT NULL,
	elapsed_ms           BIGINT      NOT NULL,
	expires_at           TIMESTAMPTZ NOT NULL,
	solved_at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS solves_website_solved_at ON solves (website_id, solved_at DESC);`

// Client wraps PostgreSQL database operations
type Client struct {
	db *sql.DB
}

// Config holds PostgreSQL connection configuration
type Config struct {
	// URL is a lib/pq connection string, either postgres:// or key=value form.
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DefaultConfig returns a small pool suited to a command-line client
func DefaultConfig(url string) *Config {
	return &Config{
		URL:          url,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		MaxLifetime:  5 * time.Minute,
	}
}

// NewClient opens the database, checks connectivity and applies the schema
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks database connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sql.DB
func (c *Client) DB() *sql.DB {
	return c.db
}
