package challenge

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// ParseTarget decodes a hex target into 32 big-endian bytes.
// Shorter inputs are left-padded with zeros.
func ParseTarget(targetStr string) ([32]byte, error) {
	var target [32]byte

	if len(targetStr) == 0 {
		return target, fmt.Errorf("target string cannot be empty")
	}
	if len(targetStr)%2 != 0 {
		return target, fmt.Errorf("target string must have even length, got %d", len(targetStr))
	}
	if len(targetStr) > 64 {
		return target, fmt.Errorf("target string too long: maximum 64 hex characters, got %d", len(targetStr))
	}

	decoded, err := hex.DecodeString(targetStr)
	if err != nil {
		return target, fmt.Errorf("failed to decode hex target: %w", err)
	}

	copy(target[32-len(decoded):], decoded)
	return target, nil
}

// TargetForDifficulty returns the hex target at which a uniformly random
// hash succeeds with probability 1/difficulty. Difficulty 0 or 1 yields the
// maximum target.
func TargetForDifficulty(difficulty uint64) string {
	limit := new(big.Int).Lsh(big.NewInt(1), 256)
	if difficulty > 1 {
		limit.Div(limit, new(big.Int).SetUint64(difficulty))
	}
	limit.Sub(limit, big.NewInt(1))

	var target [32]byte
	limit.FillBytes(target[:])
	return hex.EncodeToString(target[:])
}
