//go:generate mockgen -source=interfaces.go -destination=./service_mock.go -package=service

// Package service runs the client workflows against the IronShield API:
// fetching a challenge, solving it and exchanging the solution for a token.
package service

import (
	"context"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/database/postgres"
	"github.com/bardlex/ironshield/internal/messaging"
	"github.com/bardlex/ironshield/internal/solve"
)

// ChallengeAPI is the remote challenge service
type ChallengeAPI interface {
	FetchChallenge(ctx context.Context, endpoint string) (*challenge.Challenge, error)
	SubmitSolution(ctx context.Context, sol *challenge.Solution) (*challenge.Token, error)
}

// Solver finds a verified solution for a challenge
type Solver interface {
	Solve(ctx context.Context, ch *challenge.Challenge, opts solve.Options) (*solve.Result, error)
}

// Store keeps solve history and cached tokens
type Store interface {
	RecordSolve(ctx context.Context, s *postgres.Solve) error
	RecordFailure(websiteID, reason string)
	CachedToken(ctx context.Context, endpoint string) (*challenge.Token, bool)
	CacheToken(ctx context.Context, endpoint string, token *challenge.Token) error
}

// Publisher announces solves and tokens to other systems
type Publisher interface {
	PublishSolve(ctx context.Context, event *messaging.SolveEvent) error
	PublishToken(ctx context.Context, event *messaging.TokenEvent) error
}
