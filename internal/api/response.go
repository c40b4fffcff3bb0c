package api

import (
	"net/http"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/pkg/errors"
)

// Response is the envelope every IronShield API reply uses
type Response struct {
	Status    int                  `json:"status"`
	Message   string               `json:"message"`
	Challenge *challenge.Challenge `json:"challenge,omitempty"`
	Token     *challenge.Token     `json:"token,omitempty"`
}

// ExtractChallenge returns the challenge carried by a successful response
func (r *Response) ExtractChallenge() (*challenge.Challenge, error) {
	if err := r.check("extract_challenge"); err != nil {
		return nil, err
	}
	if r.Challenge == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "extract_challenge", "response carries no challenge").
			WithContext("message", r.Message)
	}
	if err := r.Challenge.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChallenge, "extract_challenge", "malformed challenge")
	}
	return r.Challenge, nil
}

// ExtractToken returns the token carried by a successful response
func (r *Response) ExtractToken() (*challenge.Token, error) {
	if err := r.check("extract_token"); err != nil {
		return nil, err
	}
	if r.Token == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "extract_token", "response carries no token").
			WithContext("message", r.Message)
	}
	return r.Token, nil
}

func (r *Response) check(operation string) error {
	if r.Status != http.StatusOK {
		msg := "api reported failure"
		if r.Message != "" {
			msg += ": " + r.Message
		}
		return errors.New(errors.ErrorTypeValidation, operation, msg).
			WithContext("status", r.Status).
			WithContext("message", r.Message)
	}
	return nil
}
