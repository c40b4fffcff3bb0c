package solve

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/pkg/log"
)

// DefaultProgressLogInterval is the attempt count between progress log lines
// for a single worker.
const DefaultProgressLogInterval uint64 = 1_000_000

// raceContext is the state shared by every worker of one solve call
type raceContext struct {
	found    atomic.Bool
	attempts []atomic.Uint64
	started  time.Time

	logInterval uint64
	mu          sync.Mutex
	lastLogged  map[int]uint64
}

func newRaceContext(workers int, logInterval uint64, started time.Time) *raceContext {
	if logInterval == 0 {
		logInterval = DefaultProgressLogInterval
	}
	return &raceContext{
		attempts:    make([]atomic.Uint64, workers),
		started:     started,
		logInterval: logInterval,
		lastLogged:  make(map[int]uint64, workers),
	}
}

// markFound flips the found flag; only the first caller gets true
func (rc *raceContext) markFound() bool {
	return rc.found.CompareAndSwap(false, true)
}

// progress returns the callback handed to worker i's solver. Batches are
// accumulated into the worker's own counter; once a solution has been
// accepted the callback does nothing.
func (rc *raceContext) progress(i int, logger *log.Logger) ProgressFunc {
	return func(batch uint64) {
		if rc.found.Load() {
			return
		}
		total := rc.attempts[i].Add(batch)
		if rc.shouldLog(i, total) {
			logger.LogSolveProgress(total, time.Since(rc.started))
		}
	}
}

func (rc *raceContext) shouldLog(i int, total uint64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if total-rc.lastLogged[i] < rc.logInterval {
		return false
	}
	rc.lastLogged[i] = total
	return true
}

// reported sums the attempts every worker has reported so far
func (rc *raceContext) reported() uint64 {
	var sum uint64
	for i := range rc.attempts {
		sum += rc.attempts[i].Load()
	}
	return sum
}

// race runs one worker per partition and returns the first solution.
// Failed workers drop out without disturbing the others; when every worker
// has failed the race fails with ErrNoSolutionFound. Losers are cancelled
// through their contexts, which a solver may or may not observe promptly.
func (o *Orchestrator) race(ctx context.Context, ch *challenge.Challenge, cfg SolveConfig, rc *raceContext) (outcome, error) {
	parts := Partitions(cfg.ThreadCount)
	results := make(chan outcome, len(parts))
	remaining := make(map[int]context.CancelFunc, len(parts))

	cancelRemaining := func() {
		for i, cancel := range remaining {
			cancel()
			delete(remaining, i)
		}
	}
	defer cancelRemaining()

	for _, p := range parts {
		wctx, cancel := context.WithCancel(ctx)
		remaining[p.Index] = cancel

		w := newWorker(p, o.solver, o.logger)
		w.spawn(wctx, ch, rc.progress(p.Index, w.logger), results)
	}

	o.logger.Debug("race started", "workers", len(parts))

	var lastErr error
	for len(remaining) > 0 {
		select {
		case out := <-results:
			if cancel, ok := remaining[out.worker]; ok {
				cancel()
				delete(remaining, out.worker)
			}

			if out.err == nil {
				rc.markFound()
				cancelled := len(remaining)
				cancelRemaining()
				o.logger.Debug("race won", "worker", out.worker, "cancelled", cancelled)
				return out, nil
			}

			if ctx.Err() != nil {
				return outcome{}, contextError(ctx)
			}

			o.logger.WithError(out.err).Warn("worker failed", "worker", out.worker, "remaining", len(remaining))
			lastErr = out.err

		case <-ctx.Done():
			return outcome{}, contextError(ctx)
		}
	}

	return outcome{}, noSolutionError(len(parts), lastErr)
}

// single runs an unpartitioned search on one worker
func (o *Orchestrator) single(ctx context.Context, ch *challenge.Challenge, rc *raceContext) (outcome, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, 1)
	w := newWorker(Partitions(1)[0], o.solver, o.logger)
	w.spawn(wctx, ch, rc.progress(0, w.logger), results)

	select {
	case out := <-results:
		if out.err != nil {
			if ctx.Err() != nil {
				return outcome{}, contextError(ctx)
			}
			return outcome{}, out.err
		}
		rc.markFound()
		return out, nil
	case <-ctx.Done():
		return outcome{}, contextError(ctx)
	}
}
