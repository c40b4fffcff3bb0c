package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// SolveRepository handles solve history operations
type SolveRepository struct {
	db *sql.DB
}

// NewSolveRepository creates a new solve repository
func NewSolveRepository(db *sql.DB) *SolveRepository {
	return &SolveRepository{db: db}
}

// CreateSolve inserts a solve record and sets its ID
func (r *SolveRepository) CreateSolve(ctx context.Context, solve *Solve) error {
	query := `
		INSERT INTO solves (endpoint, website_id, random_nonce, challenge_param, recommended_attempts,
		                    nonce, threads, multithreaded, estimated_attempts, hash_rate, elapsed_ms,
		                    expires_at, solved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		solve.Endpoint, solve.WebsiteID, solve.RandomNonce, solve.ChallengeParam, solve.RecommendedAttempts,
		solve.Nonce, solve.Threads, solve.Multithreaded, solve.EstimatedAttempts, solve.HashRate, solve.ElapsedMs,
		solve.ExpiresAt, solve.SolvedAt,
	).Scan(&solve.ID)

	if err != nil {
		return fmt.Errorf("failed to create solve: %w", err)
	}

	return nil
}

// GetRecentSolves returns the latest solves, optionally for one website
func (r *SolveRepository) GetRecentSolves(ctx context.Context, websiteID string, limit int) ([]*Solve, error) {
	query := `
		SELECT id, endpoint, website_id, random_nonce, challenge_param, recommended_attempts,
		       nonce, threads, multithreaded, estimated_attempts, hash_rate, elapsed_ms,
		       expires_at, solved_at
		FROM solves
		WHERE ($1 = '' OR website_id = $1)
		ORDER BY solved_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, websiteID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query solves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var solves []*Solve
	for rows.Next() {
		s := &Solve{}
		if err := rows.Scan(
			&s.ID, &s.Endpoint, &s.WebsiteID, &s.RandomNonce, &s.ChallengeParam, &s.RecommendedAttempts,
			&s.Nonce, &s.Threads, &s.Multithreaded, &s.EstimatedAttempts, &s.HashRate, &s.ElapsedMs,
			&s.ExpiresAt, &s.SolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan solve: %w", err)
		}
		solves = append(solves, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solves: %w", err)
	}

	return solves, nil
}

// GetSolveStats aggregates every recorded solve for a website
func (r *SolveRepository) GetSolveStats(ctx context.Context, websiteID string) (*SolveStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(elapsed_ms), 0), COALESCE(AVG(hash_rate), 0),
		       COALESCE(MAX(estimated_attempts), 0), MAX(solved_at)
		FROM solves WHERE website_id = $1`

	stats := &SolveStats{WebsiteID: websiteID}
	err := r.db.QueryRowContext(ctx, query, websiteID).Scan(
		&stats.Count, &stats.AvgElapsedMs, &stats.AvgHashRate, &stats.MaxAttempts, &stats.LastSolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get solve stats: %w", err)
	}

	return stats, nil
}
