package pow

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/solve"
)

// Verifier checks solutions with big-integer arithmetic, independently of the
// byte comparison the solver uses.
type Verifier struct{}

var _ solve.Verifier = Verifier{}

// NewVerifier creates a verifier
func NewVerifier() Verifier {
	return Verifier{}
}

// Verify reports whether sol is a valid solution of ch
func (Verifier) Verify(ch *challenge.Challenge, sol *challenge.Solution) bool {
	if ch == nil || sol == nil || sol.Solution < 0 {
		return false
	}
	if sol.SolvedChallenge.RandomNonce != ch.RandomNonce ||
		sol.SolvedChallenge.ChallengeParam != ch.ChallengeParam ||
		sol.SolvedChallenge.WebsiteID != ch.WebsiteID {
		return false
	}

	seed, err := ch.Seed()
	if err != nil {
		return false
	}
	target, err := ch.Target()
	if err != nil {
		return false
	}

	hash := HashNonce(seed, uint64(sol.Solution))
	return blockchain.HashToBig(&hash).Cmp(new(big.Int).SetBytes(target[:])) <= 0
}
