package solve

import (
	"context"

	"github.com/bardlex/ironshield/pkg/errors"
)

// Sentinels returned (wrapped in *errors.ServiceError) by Orchestrator.Solve.
// Match them with errors.Is.
var (
	ErrChallengeExpired    = errors.Sentinel("challenge expired")
	ErrWorkerFailure       = errors.Sentinel("worker failed")
	ErrNoSolutionFound     = errors.Sentinel("no solution found")
	ErrVerificationFailed  = errors.Sentinel("solution failed verification")
	ErrTaskExecutionFailed = errors.Sentinel("worker task failed to execute")
)

func expiredError(operation string, expirationMs, nowMs int64) error {
	return errors.New(errors.ErrorTypeChallenge, operation, "challenge expired").
		WithKind(ErrChallengeExpired).
		WithContext("expiration_ms", expirationMs).
		WithContext("now_ms", nowMs)
}

// deadlineError is the cause attached to the solve context when the deadline
// is enforced, so it is built before the deadline fires.
func deadlineError(expirationMs int64) error {
	return errors.New(errors.ErrorTypeChallenge, "solve", "challenge expired while solving").
		WithKind(ErrChallengeExpired).
		WithContext("expiration_ms", expirationMs)
}

func workerError(cause error, worker int) *errors.ServiceError {
	se := errors.Wrap(cause, errors.ErrorTypeSolver, "worker", "worker failed").
		WithKind(ErrWorkerFailure).
		WithContext("worker", worker)
	se.Retryable = false
	return se
}

func panicError(recovered any, worker int) *errors.ServiceError {
	return errors.New(errors.ErrorTypeSolver, "worker", "worker panicked").
		WithKind(ErrTaskExecutionFailed).
		WithContext("worker", worker).
		WithContext("panic", recovered)
}

func noSolutionError(workers int, last error) error {
	se := errors.Wrap(last, errors.ErrorTypeSolver, "race", "all workers failed")
	if se == nil {
		se = errors.New(errors.ErrorTypeSolver, "race", "all workers failed")
	}
	se.Retryable = false
	return se.WithKind(ErrNoSolutionFound).WithContext("workers", workers)
}

func verificationError(nonce int64) error {
	return errors.New(errors.ErrorTypeVerification, "verify", "solution rejected by verifier").
		WithKind(ErrVerificationFailed).
		WithContext("nonce", nonce)
}

// contextError explains why ctx ended: the challenge deadline, or the
// caller giving up.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrChallengeExpired) {
		return cause
	}

	errType := errors.ErrorTypeInternal
	if errors.Is(cause, context.DeadlineExceeded) {
		errType = errors.ErrorTypeTimeout
	}
	se := errors.Wrap(cause, errType, "solve", "solve interrupted")
	se.Retryable = false
	return se
}
