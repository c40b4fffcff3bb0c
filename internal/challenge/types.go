// Package challenge defines the wire types exchanged with the IronShield API:
// the challenge issued for a protected endpoint, the solution sent back and the
// access token granted in return.
package challenge

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// HeaderName carries the encoded solution on submission
const HeaderName = "X-Ironshield-Challenge-Response"

// TokenHeaderName carries the encoded token on requests to the protected endpoint
const TokenHeaderName = "X-Ironshield-Token"

// Challenge is a proof-of-work puzzle issued for one website.
// The solve pipeline treats it as read-only.
type Challenge struct {
	RandomNonce         string `json:"random_nonce"`
	CreatedTime         int64  `json:"created_time"`
	ExpirationTime      int64  `json:"expiration_time"`
	WebsiteID           string `json:"website_id"`
	ChallengeParam      string `json:"challenge_param"`
	RecommendedAttempts uint64 `json:"recommended_attempts"`
	PublicKey           string `json:"public_key,omitempty"`
	ChallengeSignature  string `json:"challenge_signature,omitempty"`
}

// Solution pairs a challenge with the nonce that satisfies it
type Solution struct {
	SolvedChallenge Challenge `json:"solved_challenge"`
	Solution        int64     `json:"solution"`
}

// Token is the access grant returned for a verified solution
type Token struct {
	ChallengeSignature string `json:"challenge_signature"`
	ValidFor           int64  `json:"valid_for"`
	PublicKey          string `json:"public_key,omitempty"`
	AuthSignature      string `json:"auth_signature"`
}

// Request asks the API for a challenge guarding Endpoint
type Request struct {
	Endpoint  string `json:"endpoint"`
	Timestamp int64  `json:"timestamp"`
}

// NewRequest builds a request stamped with now
func NewRequest(endpoint string, now time.Time) Request {
	return Request{Endpoint: endpoint, Timestamp: now.UnixMilli()}
}

// IsExpired reports whether now is strictly past the expiration time
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.UnixMilli() > c.ExpirationTime
}

// ExpiresAt returns the expiration time as a time.Time
func (c *Challenge) ExpiresAt() time.Time {
	return time.UnixMilli(c.ExpirationTime)
}

// TimeUntilExpiry returns how long is left before the challenge expires
func (c *Challenge) TimeUntilExpiry(now time.Time) time.Duration {
	return c.ExpiresAt().Sub(now)
}

// Difficulty is the expected number of attempts per solution
func (c *Challenge) Difficulty() uint64 {
	return c.RecommendedAttempts / 2
}

// Seed decodes the random nonce
func (c *Challenge) Seed() ([]byte, error) {
	if c.RandomNonce == "" {
		return nil, fmt.Errorf("random nonce is empty")
	}
	seed, err := hex.DecodeString(c.RandomNonce)
	if err != nil {
		return nil, fmt.Errorf("random nonce is not hex: %w", err)
	}
	return seed, nil
}

// Target decodes the challenge parameter as a 32-byte big-endian target
func (c *Challenge) Target() ([32]byte, error) {
	return ParseTarget(c.ChallengeParam)
}

// Validate checks the fields the solver depends on
func (c *Challenge) Validate() error {
	if c.WebsiteID == "" {
		return fmt.Errorf("website id is empty")
	}
	if c.ExpirationTime <= 0 {
		return fmt.Errorf("expiration time must be positive, got %d", c.ExpirationTime)
	}
	if _, err := c.Seed(); err != nil {
		return err
	}
	if _, err := c.Target(); err != nil {
		return err
	}
	return nil
}

// ToHeader encodes the solution as base64url JSON for the response header
func (s *Solution) ToHeader() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal solution: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// SolutionFromHeader decodes a value produced by ToHeader
func SolutionFromHeader(value string) (*Solution, error) {
	data, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode solution header: %w", err)
	}
	var s Solution
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal solution: %w", err)
	}
	return &s, nil
}

// IsValid reports whether the token can still be presented at now
func (t *Token) IsValid(now time.Time) bool {
	return now.UnixMilli() < t.ValidFor
}

// ExpiresAt returns the token's validity limit
func (t *Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.ValidFor)
}

// ToHeader encodes the token as base64url JSON
func (t *Token) ToHeader() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}
