package service

import (
	"context"
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/database/postgres"
	"github.com/bardlex/ironshield/internal/messaging"
	"github.com/bardlex/ironshield/internal/solve"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
)

// sideEffectTimeout bounds recording and publishing after a solve
const sideEffectTimeout = 5 * time.Second

// Service ties the API client, the solver and the optional backends together
type Service struct {
	api       ChallengeAPI
	solver    Solver
	store     Store
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithStore records solves and caches tokens in s
func WithStore(s Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithPublisher announces solves and tokens through p
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.publisher = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New creates a Service
func New(api ChallengeAPI, solver Solver, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Nop()
	}

	s := &Service{
		api:       api,
		solver:    solver,
		store:     nopStore{},
		publisher: nopPublisher{},
		logger:    logger.WithComponent("service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solved is a challenge together with its verified solution
type Solved struct {
	Challenge *challenge.Challenge
	Result    *solve.Result
}

// Validated is the outcome of Validate
type Validated struct {
	Token  *challenge.Token
	Cached bool
	// Solved is nil when the token came from the cache.
	Solved *Solved
}

// Fetch requests a challenge for endpoint
func (s *Service) Fetch(ctx context.Context, endpoint string) (*challenge.Challenge, error) {
	ch, err := s.api.FetchChallenge(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	s.logger.WithChallenge(ch.WebsiteID, ch.ExpirationTime).Info("challenge fetched",
		"endpoint", endpoint,
		"recommended_attempts", ch.RecommendedAttempts,
		"time_left_ms", ch.TimeUntilExpiry(s.now()).Milliseconds(),
	)
	return ch, nil
}

// Solve fetches a challenge for endpoint and solves it. Recording and
// publishing the result are best effort and never fail the solve.
func (s *Service) Solve(ctx context.Context, endpoint string, opts solve.Options) (*Solved, error) {
	ch, err := s.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	result, err := s.solver.Solve(ctx, ch, opts)
	if err != nil {
		s.store.RecordFailure(ch.WebsiteID, FailureReason(err))
		return nil, err
	}

	s.recordSolve(ctx, endpoint, ch, result)
	return &Solved{Challenge: ch, Result: result}, nil
}

// Validate obtains a token for endpoint: a cached one while it is still
// valid, otherwise by solving a fresh challenge and submitting the solution.
func (s *Service) Validate(ctx context.Context, endpoint string, opts solve.Options) (*Validated, error) {
	if token, ok := s.store.CachedToken(ctx, endpoint); ok {
		s.logger.Info("using cached token", "endpoint", endpoint, "valid_until", token.ExpiresAt())
		s.publishToken(ctx, endpoint, "", token, true)
		return &Validated{Token: token, Cached: true}, nil
	}

	solved, err := s.Solve(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}

	token, err := s.api.SubmitSolution(ctx, solved.Result.Solution)
	if err != nil {
		s.logger.WithError(err).Warn("solution was not accepted", "endpoint", endpoint,
			"nonce", solved.Result.Solution.Solution)
		return nil, err
	}

	now := s.now()
	if !token.IsValid(now) {
		return nil, errors.New(errors.ErrorTypeValidation, "validate", "api returned an expired token").
			WithContext("endpoint", endpoint).
			WithContext("valid_for", token.ValidFor)
	}

	s.logger.Info("token granted", "endpoint", endpoint, "valid_for_ms", token.ExpiresAt().Sub(now).Milliseconds())

	sideCtx, cancel := sideEffectContext(ctx)
	defer cancel()
	if err := s.store.CacheToken(sideCtx, endpoint, token); err != nil {
		s.logger.WithError(err).Warn("failed to cache token", "endpoint", endpoint)
	}
	s.publishToken(ctx, endpoint, solved.Challenge.WebsiteID, token, false)

	return &Validated{Token: token, Solved: solved}, nil
}

func (s *Service) recordSolve(ctx context.Context, endpoint string, ch *challenge.Challenge, result *solve.Result) {
	ctx, cancel := sideEffectContext(ctx)
	defer cancel()

	record := SolveRecord(endpoint, ch, result, s.now())
	if err := s.store.RecordSolve(ctx, record); err != nil {
		s.logger.WithError(err).Warn("failed to record solve", "website_id", ch.WebsiteID)
	}

	if err := s.publisher.PublishSolve(ctx, SolveEvent(record)); err != nil {
		s.logger.WithError(err).Warn("failed to publish solve event", "website_id", ch.WebsiteID)
	}
}

func (s *Service) publishToken(ctx context.Context, endpoint, websiteID string, token *challenge.Token, cached bool) {
	ctx, cancel := sideEffectContext(ctx)
	defer cancel()

	event := &messaging.TokenEvent{
		EventID:   messaging.NewEventID(),
		Endpoint:  endpoint,
		WebsiteID: websiteID,
		ValidFor:  token.ValidFor,
		Cached:    cached,
		IssuedAt:  s.now(),
	}
	if err := s.publisher.PublishToken(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish token event", "endpoint", endpoint)
	}
}

// Side effects outlive a cancelled caller so a finished solve still gets recorded.
func sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

// SolveRecord converts a solve result into a history row
func SolveRecord(endpoint string, ch *challenge.Challenge, result *solve.Result, solvedAt time.Time) *postgres.Solve {
	return &postgres.Solve{
		Endpoint:            endpoint,
		WebsiteID:           ch.WebsiteID,
		RandomNonce:         ch.RandomNonce,
		ChallengeParam:      ch.ChallengeParam,
		RecommendedAttempts: int64(ch.RecommendedAttempts),
		Nonce:               result.Solution.Solution,
		Threads:             result.Config.ThreadCount,
		Multithreaded:       result.Config.UseMultithreaded,
		EstimatedAttempts:   int64(result.Telemetry.EstimatedAttempts),
		HashRate:            int64(result.Telemetry.HashRate),
		ElapsedMs:           result.Telemetry.Elapsed.Milliseconds(),
		ExpiresAt:           ch.ExpiresAt(),
		SolvedAt:            solvedAt,
	}
}

// SolveEvent converts a history row into a solve event
func SolveEvent(record *postgres.Solve) *messaging.SolveEvent {
	return &messaging.SolveEvent{
		EventID:       messaging.NewEventID(),
		Endpoint:      record.Endpoint,
		WebsiteID:     record.WebsiteID,
		Nonce:         record.Nonce,
		Threads:       record.Threads,
		Multithreaded: record.Multithreaded,
		Attempts:      uint64(record.EstimatedAttempts),
		HashRate:      uint64(record.HashRate),
		ElapsedMs:     record.ElapsedMs,
		SolvedAt:      record.SolvedAt,
	}
}

// FailureReason classifies a solve error for metrics
func FailureReason(err error) string {
	switch {
	case errors.Is(err, solve.ErrChallengeExpired):
		return "expired"
	case errors.Is(err, solve.ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, solve.ErrNoSolutionFound):
		return "no_solution"
	case errors.Is(err, solve.ErrWorkerFailure):
		return "worker_failure"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

type nopStore struct{}

func (nopStore) RecordSolve(context.Context, *postgres.Solve) error { return nil }
func (nopStore) RecordFailure(string, string)                       {}
func (nopStore) CachedToken(context.Context, string) (*challenge.Token, bool) {
	return nil, false
}
func (nopStore) CacheToken(context.Context, string, *challenge.Token) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishSolve(context.Context, *messaging.SolveEvent) error { return nil }
func (nopPublisher) PublishToken(context.Context, *messaging.TokenEvent) error { return nil }
