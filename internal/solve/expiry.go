package solve

import (
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
)

// CheckExpiry fails with ErrChallengeExpired when now is past the challenge's
// expiration time. It must run before any worker is started.
func CheckExpiry(ch *challenge.Challenge, now time.Time) error {
	if ch.IsExpired(now) {
		return expiredError("check_expiry", ch.ExpirationTime, now.UnixMilli())
	}
	return nil
}
