package solve

import (
	"context"
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
)

// Options controls a single Solve call
type Options struct {
	// Threads overrides the worker count; zero or negative selects automatically.
	Threads int
	// UseMultithreaded enables the partitioned race. When false a single
	// worker scans the whole nonce space.
	UseMultithreaded bool
	// EnforceDeadline stops every worker once the challenge expires.
	EnforceDeadline bool
	// ProgressLogInterval is the attempt count between progress log lines per worker.
	ProgressLogInterval uint64
}

// DefaultOptions returns multithreaded solving with deadline enforcement
func DefaultOptions() Options {
	return Options{
		UseMultithreaded:    true,
		EnforceDeadline:     true,
		ProgressLogInterval: DefaultProgressLogInterval,
	}
}

// Result is a verified solution and the telemetry of the solve that found it
type Result struct {
	Solution  *challenge.Solution
	Telemetry Telemetry
	Config    SolveConfig
	Worker    int
}

// Orchestrator drives solves: it guards expiry, sizes the worker pool,
// runs the race, verifies the winner and computes telemetry.
type Orchestrator struct {
	solver      Solver
	verifier    Verifier
	logger      *log.Logger
	now         func() time.Time
	parallelism func() int
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithParallelism replaces AvailableParallelism
func WithParallelism(fn func() int) Option {
	return func(o *Orchestrator) { o.parallelism = fn }
}

// NewOrchestrator creates an orchestrator around a solver and verifier
func NewOrchestrator(solver Solver, verifier Verifier, logger *log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	o := &Orchestrator{
		solver:      solver,
		verifier:    verifier,
		logger:      logger.WithComponent("solve"),
		now:         time.Now,
		parallelism: AvailableParallelism,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Solve finds and verifies a solution for ch.
//
// Errors match (errors.Is) one of ErrChallengeExpired, ErrWorkerFailure,
// ErrNoSolutionFound or ErrVerificationFailed, or wrap the caller's context
// error. None of them is worth retrying with the same challenge.
func (o *Orchestrator) Solve(ctx context.Context, ch *challenge.Challenge, opts Options) (*Result, error) {
	if ch == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "solve", "challenge is nil")
	}

	start := o.now()
	if err := CheckExpiry(ch, start); err != nil {
		return nil, err
	}

	cfg := NewSolveConfig(opts.Threads, opts.UseMultithreaded, o.parallelism())
	logger := o.logger.WithChallenge(ch.WebsiteID, ch.ExpirationTime)
	logger.Info("solving challenge",
		"threads", cfg.ThreadCount,
		"multithreaded", cfg.UseMultithreaded,
		"recommended_attempts", ch.RecommendedAttempts,
		"time_left_ms", ch.TimeUntilExpiry(start).Milliseconds(),
	)

	if opts.EnforceDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadlineCause(ctx, ch.ExpiresAt(), deadlineError(ch.ExpirationTime))
		defer cancel()
	}

	rc := newRaceContext(cfg.ThreadCount, opts.ProgressLogInterval, start)

	var (
		out    outcome
		err    error
		stride uint64 = 1
	)
	if cfg.UseMultithreaded && cfg.ThreadCount > 1 {
		stride = uint64(cfg.ThreadCount)
		out, err = o.race(ctx, ch, cfg, rc)
	} else {
		out, err = o.single(ctx, ch, rc)
	}
	if err != nil {
		logger.WithError(err).Warn("solve failed", "elapsed_ms", o.now().Sub(start).Milliseconds())
		return nil, err
	}

	if err := verifyResult(o.verifier, ch, out.solution); err != nil {
		logger.WithError(err).Error("winning solution failed verification", "worker", out.worker)
		return nil, err
	}

	telemetry := Estimate(o.now().Sub(start), uint64(out.solution.Solution), stride)
	telemetry.ReportedAttempts = rc.reported()

	logger.LogSolveCompleted(out.solution.Solution, telemetry.EstimatedAttempts, telemetry.HashRate,
		telemetry.Elapsed, cfg.ThreadCount)
	// measured counterpart of the estimate above
	logger.LogThroughput("solve", telemetry.ReportedAttempts, telemetry.Elapsed)

	return &Result{
		Solution:  out.solution,
		Telemetry: telemetry,
		Config:    cfg,
		Worker:    out.worker,
	}, nil
}
