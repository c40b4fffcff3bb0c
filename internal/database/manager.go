// Package database coordinates the optional storage backends of the IronShield
// client: solve history in PostgreSQL, a token cache in Redis and solve
// metrics in InfluxDB. Every backend is optional and a Manager with none
// configured is a valid no-op.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/database/influx"
	"github.com/bardlex/ironshield/internal/database/postgres"
	"github.com/bardlex/ironshield/internal/database/redis"
	"github.com/bardlex/ironshield/pkg/circuit"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
	"github.com/bardlex/ironshield/pkg/retry"
)

// ErrHistoryDisabled is returned by history queries when PostgreSQL is not configured
var ErrHistoryDisabled = errors.Sentinel("solve history requires POSTGRES_URL")

// hashrateWindow bounds the hash rate samples kept per website
const hashrateWindow = time.Hour

type solveStore interface {
	CreateSolve(ctx context.Context, solve *postgres.Solve) error
	GetRecentSolves(ctx context.Context, websiteID string, limit int) ([]*postgres.Solve, error)
	GetSolveStats(ctx context.Context, websiteID string) (*postgres.SolveStats, error)
}

type cacheStore interface {
	SetToken(ctx context.Context, endpoint string, token any, ttl time.Duration) error
	GetToken(ctx context.Context, endpoint string, dest any) (bool, error)
	DeleteToken(ctx context.Context, endpoint string) error
	AddHashrateSample(ctx context.Context, websiteID string, hashRate uint64, window time.Duration) error
	IncrementSolveCount(ctx context.Context, websiteID string, expiration time.Duration) (int64, error)
	AverageHashrate(ctx context.Context, websiteID string, window time.Duration) (float64, error)
}

type metricsWriter interface {
	WriteSolveMetric(m influx.SolveMetric)
	WriteFailureMetric(websiteID, reason string, at time.Time)
	GetHashrateHistory(ctx context.Context, websiteID string, duration time.Duration) ([]influx.HashratePoint, error)
}

// Manager coordinates the configured backends
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client

	solves  solveStore
	cache   cacheStore
	metrics metricsWriter

	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
	logger         *log.Logger
	now            func() time.Time
}

// Config holds configuration for each backend; a nil entry disables it
type Config struct {
	Postgres *postgres.Config
	Redis    *redis.Config
	Influx   *influx.Config
}

// NewManager connects the configured backends. If one fails to connect the
// ones already opened are closed again.
func NewManager(cfg *Config, logger *log.Logger) (*Manager, error) {
	m := newManager(logger)
	if cfg == nil {
		return m, nil
	}

	if cfg.Postgres != nil {
		pgClient, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeStorage, "postgres_connection",
				"failed to connect to PostgreSQL database"))
		}
		m.Postgres = pgClient
		m.solves = postgres.NewSolveRepository(pgClient.DB())
	}

	if cfg.Redis != nil {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeStorage, "redis_connection",
				"failed to connect to Redis database"))
		}
		m.Redis = redisClient
		m.cache = redisClient
	}

	if cfg.Influx != nil {
		influxClient, err := influx.NewClient(cfg.Influx)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeStorage, "influx_connection",
				"failed to connect to InfluxDB database"))
		}
		m.Influx = influxClient
		m.metrics = influxClient
	}

	m.logger.Debug("storage ready",
		"postgres", m.Postgres != nil,
		"redis", m.Redis != nil,
		"influx", m.Influx != nil)

	return m, nil
}

func newManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent("database")

	return &Manager{
		circuitBreaker: circuit.New(&circuit.Config{
			Name:            "postgres",
			MaxFailures:     3,
			SuccessRequired: 2,
			Timeout:         30 * time.Second,
			ResetTimeout:    60 * time.Second,
		}),
		retryConfig: retry.StorageConfig(),
		logger:      logger,
		now:         time.Now,
	}
}

func (m *Manager) abort(origErr *errors.ServiceError) error {
	if closeErr := m.Close(); closeErr != nil {
		return origErr.WithContext("cleanup_error", closeErr.Error())
	}
	return origErr
}

// Close closes all open connections
func (m *Manager) Close() error {
	var errs []error

	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("PostgreSQL close error: %w", err))
		}
	}

	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if m.Influx != nil {
		m.Influx.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("database close errors: %v", errs)
	}

	return nil
}

// Health checks every open connection
func (m *Manager) Health(ctx context.Context) error {
	if m.Postgres != nil {
		if err := m.Postgres.Health(ctx); err != nil {
			return fmt.Errorf("PostgreSQL health check failed: %w", err)
		}
	}

	if m.Redis != nil {
		if err := m.Redis.Health(ctx); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}

	if m.Influx != nil {
		if err := m.Influx.Health(ctx); err != nil {
			return fmt.Errorf("InfluxDB health check failed: %w", err)
		}
	}

	return nil
}

// CircuitStats reports the PostgreSQL circuit breaker counters
func (m *Manager) CircuitStats() circuit.Stats {
	return m.circuitBreaker.GetStats()
}

// RecordSolve stores a completed solve. The PostgreSQL insert is retried and
// its failure is returned; the metric point and the Redis sample are best effort.
func (m *Manager) RecordSolve(ctx context.Context, solve *postgres.Solve) error {
	start := time.Now()
	if m.solves != nil {
		err := m.circuitBreaker.Execute(ctx, func() error {
			return retry.Do(ctx, m.retryConfig, func() error {
				if err := m.solves.CreateSolve(ctx, solve); err != nil {
					return errors.Wrap(err, errors.ErrorTypeStorage, "record_solve",
						"failed to store solve in PostgreSQL").
						WithContext("website_id", solve.WebsiteID).
						WithContext("nonce", solve.Nonce)
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}

	if m.metrics != nil {
		m.metrics.WriteSolveMetric(influx.SolveMetric{
			WebsiteID:     solve.WebsiteID,
			Threads:       solve.Threads,
			Multithreaded: solve.Multithreaded,
			Elapsed:       time.Duration(solve.ElapsedMs) * time.Millisecond,
			Attempts:      uint64(solve.EstimatedAttempts),
			HashRate:      uint64(solve.HashRate),
			Difficulty:    uint64(solve.RecommendedAttempts / 2),
			At:            solve.SolvedAt,
		})
	}

	if m.cache != nil {
		if err := m.cache.AddHashrateSample(ctx, solve.WebsiteID, uint64(solve.HashRate), hashrateWindow); err != nil {
			m.logger.WithError(err).Warn("failed to record hashrate sample", "website_id", solve.WebsiteID)
		}
		if _, err := m.cache.IncrementSolveCount(ctx, solve.WebsiteID, 24*time.Hour); err != nil {
			m.logger.WithError(err).Warn("failed to increment solve count", "website_id", solve.WebsiteID)
		}
	}

	m.logger.LogDuration("record_solve", time.Since(start))
	return nil
}

// RecordFailure writes a failed solve to the metrics backend
func (m *Manager) RecordFailure(websiteID, reason string) {
	if m.metrics != nil {
		m.metrics.WriteFailureMetric(websiteID, reason, m.now())
	}
}

// CachedToken returns a still valid token cached for endpoint. Cache errors
// are logged and treated as a miss.
func (m *Manager) CachedToken(ctx context.Context, endpoint string) (*challenge.Token, bool) {
	if m.cache == nil {
		return nil, false
	}

	var token challenge.Token
	found, err := m.cache.GetToken(ctx, endpoint, &token)
	if err != nil {
		m.logger.WithError(err).Warn("token cache read failed", "endpoint", endpoint)
		return nil, false
	}
	if !found {
		return nil, false
	}

	if !token.IsValid(m.now()) {
		if err := m.cache.DeleteToken(ctx, endpoint); err != nil {
			m.logger.WithError(err).Debug("failed to drop expired token", "endpoint", endpoint)
		}
		return nil, false
	}

	return &token, true
}

// CacheToken stores token for endpoint until it stops being valid
func (m *Manager) CacheToken(ctx context.Context, endpoint string, token *challenge.Token) error {
	if m.cache == nil {
		return nil
	}

	ttl := token.ExpiresAt().Sub(m.now())
	if ttl <= 0 {
		return nil
	}

	if err := m.cache.SetToken(ctx, endpoint, token, ttl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "cache_token", "failed to cache token in Redis").
			WithContext("endpoint", endpoint)
	}
	return nil
}

// RecentSolves lists the latest recorded solves, optionally for one website
func (m *Manager) RecentSolves(ctx context.Context, websiteID string, limit int) ([]*postgres.Solve, error) {
	if m.solves == nil {
		return nil, ErrHistoryDisabled
	}

	solves, err := m.solves.GetRecentSolves(ctx, websiteID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "recent_solves", "failed to load solve history")
	}
	return solves, nil
}

// SolveStats aggregates the recorded solves of a website
func (m *Manager) SolveStats(ctx context.Context, websiteID string) (*postgres.SolveStats, error) {
	if m.solves == nil {
		return nil, ErrHistoryDisabled
	}

	stats, err := m.solves.GetSolveStats(ctx, websiteID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "solve_stats", "failed to aggregate solves")
	}
	return stats, nil
}

// WindowHashrate averages the hash rate samples kept in Redis for the last
// hour. The second result is false when Redis is off, fails or holds nothing.
func (m *Manager) WindowHashrate(ctx context.Context, websiteID string) (float64, bool) {
	if m.cache == nil {
		return 0, false
	}

	avg, err := m.cache.AverageHashrate(ctx, websiteID, hashrateWindow)
	if err != nil {
		m.logger.WithError(err).Warn("failed to read hashrate window", "website_id", websiteID)
		return 0, false
	}
	return avg, avg > 0
}

// HashrateHistory returns the mean hash rate of a website per five minute
// window over the last duration. Without InfluxDB it returns nothing.
func (m *Manager) HashrateHistory(ctx context.Context, websiteID string, duration time.Duration) ([]influx.HashratePoint, error) {
	if m.metrics == nil {
		return nil, nil
	}

	points, err := m.metrics.GetHashrateHistory(ctx, websiteID, duration)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "hashrate_history", "failed to query InfluxDB").
			WithContext("website_id", websiteID)
	}
	return points, nil
}
