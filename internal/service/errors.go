package service

import (
	"errors"
	"fmt"
	"time"
)

// Domain error kinds surfaced to callers. Anything else coming out of the
// store or hasher is rewrapped as ErrInternal at the service boundary.
var (
	// ErrUserNotFound is returned when the referenced user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering with an email that is already in use
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned for unknown email or wrong password.
	// The two cases are indistinguishable to the caller on purpose.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailNotVerified is returned when logging in before verifying the email
	ErrEmailNotVerified = errors.New("email address not verified")

	// ErrAlreadyVerified is returned when re-requesting verification for a verified account
	ErrAlreadyVerified = errors.New("email address already verified")

	// ErrInvalidToken is returned for unknown, mistyped, or already consumed tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for tokens past their expiry
	ErrTokenExpired = errors.New("token has expired")

	// ErrPasswordPolicy is returned when a new password fails the policy
	ErrPasswordPolicy = errors.New("password must contain lowercase, uppercase and number")

	// ErrRateLimited is the match target for RateLimitError
	ErrRateLimited = errors.New("rate limited")

	// ErrInternal masks unexpected storage or hashing failures
	ErrInternal = errors.New("internal error")
)

// RateLimitError reports a blocked login or a token cooldown that has not
// elapsed. It matches ErrRateLimited under errors.Is.
type RateLimitError struct {
	RetryAfter   time.Duration
	BlockedUntil *time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds returns the remaining wait rounded up to whole seconds,
// never less than one.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// internalError wraps an unexpected failure so that only ErrInternal is
// visible across the service boundary while the cause stays in the chain
// for logging.
func internalError(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
