package postgres

import (
	"time"
)

// Solve is one solved challenge and the effort it took
type Solve struct {
	ID                  int64     `db:"id"`
	Endpoint            string    `db:"endpoint"`
	WebsiteID           string    `db:"website_id"`
	RandomNonce         string    `db:"random_nonce"`
	ChallengeParam      string    `db:"challenge_param"`
	RecommendedAttempts int64     `db:"recommended_attempts"`
	Nonce               int64     `db:"nonce"`
	Threads             int       `db:"threads"`
	Multithreaded       bool      `db:"multithreaded"`
	EstimatedAttempts   int64     `db:"estimated_attempts"`
	HashRate            int64     `db:"hash_rate"`
	ElapsedMs           int64     `db:"elapsed_ms"`
	ExpiresAt           time.Time `db:"expires_at"`
	SolvedAt            time.Time `db:"solved_at"`
}

// SolveStats aggregates solves for a website
type SolveStats struct {
	WebsiteID    string
	Count        int64
	AvgElapsedMs float64
	AvgHashRate  float64
	MaxAttempts  int64
	LastSolvedAt *time.Time
}
