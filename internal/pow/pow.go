// Package pow implements the IronShield proof-of-work puzzle.
//
// A nonce n solves a challenge when
//
//	SHA256(seed || le64(n)) <= target
//
// where seed is the decoded random_nonce and target is the 256-bit value in
// challenge_param. Following Bitcoin convention the digest is interpreted as a
// little-endian number and the target as big-endian.
package pow

import (
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Defaults for Config
const (
	DefaultBatchSize      uint64 = 100_000
	DefaultMinSearchBound uint64 = 1 << 24
	searchBoundMultiplier uint64 = 10
	maxNonce              uint64 = math.MaxInt64
)

// Config tunes the search loop
type Config struct {
	// BatchSize is the number of attempts between progress reports and
	// cancellation checks.
	BatchSize uint64
	// SearchBound caps the nonce space. Zero derives it from the challenge:
	// max(10 * recommended_attempts, DefaultMinSearchBound).
	SearchBound uint64
}

// DefaultConfig returns the default search configuration
func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize}
}

// HashNonce computes the digest for a nonce.
//
// Parameters:
//   - seed: The decoded random nonce of the challenge
//   - nonce: The candidate nonce
//
// Returns:
//   - chainhash.Hash: SHA-256 of seed followed by the nonce in little-endian
func HashNonce(seed []byte, nonce uint64) chainhash.Hash {
	buf := make([]byte, len(seed)+8)
	copy(buf, seed)
	binary.LittleEndian.PutUint64(buf[len(seed):], nonce)
	return chainhash.HashH(buf)
}

// HashMeetsTarget compares a digest, read as a little-endian number, against
// a big-endian target without allocating.
//
// Parameters:
//   - hash: The digest to check
//   - target: 32-byte big-endian target
//
// Returns:
//   - bool: true if hash <= target
func HashMeetsTarget(hash *chainhash.Hash, target *[32]byte) bool {
	for i := range 32 {
		h := hash[31-i]
		if h < target[i] {
			return true
		}
		if h > target[i] {
			return false
		}
	}
	return true
}

// searchBound returns the exclusive upper limit of the nonce space
func (c Config) searchBound(recommended uint64) uint64 {
	bound := c.SearchBound
	if bound == 0 {
		bound = DefaultMinSearchBound
		if recommended > 0 && recommended <= maxNonce/searchBoundMultiplier {
			bound = max(bound, recommended*searchBoundMultiplier)
		}
	}
	return min(bound, maxNonce)
}
