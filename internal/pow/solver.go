package pow

import (
	"context"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/solve"
	"github.com/bardlex/ironshield/pkg/errors"
)

// ErrSearchExhausted is the Kind returned when a partition holds no solution
// below the search bound.
var ErrSearchExhausted = errors.Sentinel("search space exhausted")

// Solver scans a strided slice of the nonce space.
//
// It is stateless and safe for concurrent use; the orchestrator runs one
// Solve call per worker.
type Solver struct {
	config Config
}

var _ solve.Solver = (*Solver)(nil)

// NewSolver creates a solver with the given configuration
func NewSolver(config Config) *Solver {
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Solver{config: config}
}

// Solve tries offset, offset+stride, ... below the search bound.
//
// Parameters:
//   - ctx: Checked every batch; cancellation ends the search with ctx.Err()
//   - ch: The challenge to solve
//   - offset: First nonce of this worker's partition
//   - stride: Distance between consecutive nonces of the partition
//   - progress: Receives the attempts made since the previous call; may be nil
//
// Returns:
//   - *challenge.Solution: The first satisfying nonce of the partition
//   - error: Invalid challenge, ErrSearchExhausted or the context error
func (s *Solver) Solve(ctx context.Context, ch *challenge.Challenge, offset, stride uint64, progress solve.ProgressFunc) (*challenge.Solution, error) {
	seed, err := ch.Seed()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChallenge, "pow_solve", "invalid challenge seed")
	}
	target, err := ch.Target()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChallenge, "pow_solve", "invalid challenge target")
	}
	if stride == 0 {
		stride = 1
	}
	if progress == nil {
		progress = func(uint64) {}
	}

	bound := s.config.searchBound(ch.RecommendedAttempts)
	buf := make([]byte, len(seed)+8)
	copy(buf, seed)
	suffix := buf[len(seed):]

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pending uint64
	for nonce := offset; nonce < bound; nonce += stride {
		binary.LittleEndian.PutUint64(suffix, nonce)
		hash := chainhash.HashH(buf)
		pending++

		if HashMeetsTarget(&hash, &target) {
			progress(pending)
			return &challenge.Solution{SolvedChallenge: *ch, Solution: int64(nonce)}, nil
		}

		if pending == s.config.BatchSize {
			progress(pending)
			pending = 0
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if bound-nonce <= stride {
			break
		}
	}

	if pending > 0 {
		progress(pending)
	}

	return nil, errors.New(errors.ErrorTypeSolver, "pow_solve", "no solution below search bound").
		WithKind(ErrSearchExhausted).
		WithContext("offset", offset).
		WithContext("stride", stride).
		WithContext("bound", bound)
}
