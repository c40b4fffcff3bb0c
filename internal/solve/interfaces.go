//go:generate mockgen -source=interfaces.go -destination=./solve_mock.go -package=solve

// Package solve runs a proof-of-work search for a challenge across a pool of
// workers, each scanning a disjoint slice of the nonce space, and returns the
// first verified solution together with throughput telemetry.
package solve

import (
	"context"

	"github.com/bardlex/ironshield/internal/challenge"
)

// ProgressFunc receives the number of attempts made since the previous call.
// It is invoked from the worker goroutine and must not block.
type ProgressFunc func(attempts uint64)

// Solver searches the nonces offset, offset+stride, offset+2*stride, ...
// for one satisfying the challenge.
//
// Implementations should poll ctx between batches and return ctx.Err() once it
// is done; the orchestrator relies on that for cancelling losing workers.
type Solver interface {
	Solve(ctx context.Context, ch *challenge.Challenge, offset, stride uint64, progress ProgressFunc) (*challenge.Solution, error)
}

// Verifier independently checks a candidate solution
type Verifier interface {
	Verify(ch *challenge.Challenge, sol *challenge.Solution) bool
}
