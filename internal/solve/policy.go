package solve

import (
	"runtime"
)

// SolveConfig is the worker layout for one solve call
type SolveConfig struct {
	ThreadCount      int
	UseMultithreaded bool
}

// NewSolveConfig derives the worker count. A non-positive override means
// "no override"; without one, 80% of the available parallelism is used so the
// host keeps some headroom.
func NewSolveConfig(override int, useMultithreaded bool, available int) SolveConfig {
	if !useMultithreaded {
		return SolveConfig{ThreadCount: 1}
	}
	if override > 0 {
		return SolveConfig{ThreadCount: override, UseMultithreaded: true}
	}
	return SolveConfig{
		ThreadCount:      max(1, available*4/5),
		UseMultithreaded: true,
	}
}

// AvailableParallelism is the number of CPUs the Go scheduler will use
func AvailableParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// Partition is one worker's share of the nonce space: every nonce
// congruent to Offset modulo Stride.
type Partition struct {
	Index  int
	Offset uint64
	Stride uint64
}

// Partitions splits the nonce space round-robin across n workers
func Partitions(n int) []Partition {
	n = max(n, 1)
	parts := make([]Partition, n)
	for i := range parts {
		parts[i] = Partition{Index: i, Offset: uint64(i), Stride: uint64(n)}
	}
	return parts
}

// Contains reports whether nonce belongs to the partition
func (p Partition) Contains(nonce uint64) bool {
	return nonce >= p.Offset && (nonce-p.Offset)%p.Stride == 0
}

// Attempts is how many nonces the partition covers below bound
func (p Partition) Attempts(bound uint64) uint64 {
	if bound <= p.Offset {
		return 0
	}
	return (bound-p.Offset-1)/p.Stride + 1
}
