package solve

import (
	"context"
	"runtime"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
)

// outcome is what a worker produces, exactly once: a solution or an error
type outcome struct {
	worker   int
	solution *challenge.Solution
	err      error
}

type worker struct {
	partition Partition
	solver    Solver
	logger    *log.Logger
}

func newWorker(p Partition, solver Solver, logger *log.Logger) *worker {
	return &worker{
		partition: p,
		solver:    solver,
		logger:    logger.WithWorker(p.Index, p.Offset, p.Stride),
	}
}

// run executes the search on a dedicated OS thread so the CPU-bound solver
// never shares a thread with the coordinator. A panic in the solver is
// reported as ErrTaskExecutionFailed.
func (w *worker) run(ctx context.Context, ch *challenge.Challenge, progress ProgressFunc) (out outcome) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	out.worker = w.partition.Index
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("solver panicked", "panic", r)
			out = outcome{worker: w.partition.Index, err: panicError(r, w.partition.Index)}
		}
	}()

	w.logger.Debug("worker started")

	sol, err := w.solver.Solve(ctx, ch, w.partition.Offset, w.partition.Stride, progress)
	if err != nil {
		out.err = workerError(err, w.partition.Index)
		return out
	}
	if sol == nil {
		out.err = workerError(errors.Sentinel("solver returned neither solution nor error"), w.partition.Index)
		return out
	}

	out.solution = sol
	return out
}

// spawn starts the worker and delivers its outcome on results
func (w *worker) spawn(ctx context.Context, ch *challenge.Challenge, progress ProgressFunc, results chan<- outcome) {
	go func() {
		results <- w.run(ctx, ch, progress)
	}()
}
