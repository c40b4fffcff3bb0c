package solve

import (
	"time"
)

// Telemetry summarises the effort spent on a solve.
//
// EstimatedAttempts and HashRate are derived from the winning nonce alone:
// the winner scanned about nonce/stride+1 candidates and every other worker is
// assumed to have kept pace. They are approximations. ReportedAttempts is the
// sum of what workers actually reported through their progress callbacks,
// which lags by up to one batch per worker.
type Telemetry struct {
	Elapsed           time.Duration
	EstimatedAttempts uint64
	HashRate          uint64
	ReportedAttempts  uint64
	Estimated         bool
}

// Estimate computes telemetry for a winning nonce found with the given stride
func Estimate(elapsed time.Duration, nonce, stride uint64) Telemetry {
	stride = max(stride, 1)
	total := (nonce/stride + 1) * stride

	rate := total
	if ms := uint64(elapsed.Milliseconds()); ms > 0 {
		rate = total * 1000 / ms
	}

	return Telemetry{
		Elapsed:           elapsed,
		EstimatedAttempts: total,
		HashRate:          rate,
		Estimated:         true,
	}
}
