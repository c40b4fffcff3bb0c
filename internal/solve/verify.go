package solve

import (
	"github.com/bardlex/ironshield/internal/challenge"
)

// verifyResult asks the verifier exactly once. The solver and verifier must
// agree, so a rejection is fatal and never retried.
func verifyResult(v Verifier, ch *challenge.Challenge, sol *challenge.Solution) error {
	if !v.Verify(ch, sol) {
		return verificationError(sol.Solution)
	}
	return nil
}
