package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/repository"
	"go.uber.org/zap"
)

// CheckResult is a read-only snapshot of the rate-limit state for an
// (email, ip) pair.
type CheckResult struct {
	Blocked           bool
	RemainingAttempts int
	BlockedUntil      *time.Time
	RetryAfter        time.Duration
}

// LoginRateLimiter bounds failed login attempts per (email, ip) pair using
// a sliding window keyed on the last attempt timestamp. Reaching the limit
// blocks the pair for one window; any successful login clears the counter.
//
// Store failures never lock users out: the limiter fails open and logs.
type LoginRateLimiter struct {
	attempts    repository.LoginAttemptRepository
	clock       Clock
	logger      *zap.Logger
	maxAttempts int
	window      time.Duration
}

// NewLoginRateLimiter creates a new login rate limiter
func NewLoginRateLimiter(
	attempts repository.LoginAttemptRepository,
	clock Clock,
	logger *zap.Logger,
	maxAttempts int,
	window time.Duration,
) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    attempts,
		clock:       clock,
		logger:      logger,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func limiterKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check reports whether the pair is currently blocked and how many attempts
// remain. It never writes. Callers must capture RemainingAttempts before
// recording the attempt so the reported count reflects one snapshot.
func (l *LoginRateLimiter) Check(ctx context.Context, email, ipAddress string) CheckResult {
	now := l.clock.Now()
	windowStart := now.Add(-l.window)

	attempt, err := l.attempts.Get(ctx, limiterKey(email), ipAddress)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CheckResult{RemainingAttempts: l.maxAttempts}
		}
		// Fail open: availability over strictness
		l.logger.Error("login rate limit check failed, failing open",
			zap.String("ip", ipAddress),
			zap.Error(err),
		)
		return CheckResult{RemainingAttempts: l.maxAttempts}
	}

	// A record whose last attempt predates the window is logically stale
	if attempt.LastAttemptAt.Before(windowStart) {
		return CheckResult{RemainingAttempts: l.maxAttempts}
	}

	if attempt.BlockedUntil != nil && attempt.BlockedUntil.After(now) {
		retry := time.Duration(math.Ceil(attempt.BlockedUntil.Sub(now).Seconds())) * time.Second
		return CheckResult{
			Blocked:      true,
			BlockedUntil: attempt.BlockedUntil,
			RetryAfter:   retry,
		}
	}

	remaining := l.maxAttempts - attempt.AttemptCount
	if remaining < 0 {
		remaining = 0
	}

	return CheckResult{RemainingAttempts: remaining}
}

// Record registers the outcome of a login attempt. Success deletes the
// record outright; failure increments the counter, resetting it first when
// the previous attempt fell outside the window, and sets the block once the
// count reaches the limit. Store errors are logged and swallowed.
func (l *LoginRateLimiter) Record(ctx context.Context, email, ipAddress string, success bool) {
	key := limiterKey(email)
	now := l.clock.Now()

	if success {
		if err := l.attempts.Delete(ctx, key, ipAddress); err != nil {
			l.logger.Error("failed to clear login attempts",
				zap.String("ip", ipAddress),
				zap.Error(err),
			)
		}
		return
	}

	attempt, err := l.attempts.Get(ctx, key, ipAddress)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		l.logger.Error("failed to read login attempt record",
			zap.String("ip", ipAddress),
			zap.Error(err),
		)
		return
	}

	count := 1
	if attempt != nil && !attempt.LastAttemptAt.Before(now.Add(-l.window)) {
		count = attempt.AttemptCount + 1
	}

	var blockedUntil *time.Time
	if count >= l.maxAttempts {
		t := now.Add(l.window)
		blockedUntil = &t
	}

	record := &domain.LoginAttempt{
		Email:         key,
		IPAddress:     ipAddress,
		AttemptCount:  count,
		LastAttemptAt: now,
		BlockedUntil:  blockedUntil,
	}
	if attempt != nil {
		record.ID = attempt.ID
	}

	if err := l.attempts.Upsert(ctx, record); err != nil {
		l.logger.Error("failed to record login attempt",
			zap.String("ip", ipAddress),
			zap.Error(err),
		)
		return
	}

	if blockedUntil != nil {
		l.logger.Warn("login attempts blocked",
			zap.String("ip", ipAddress),
			zap.Int("attempts", count),
			zap.Time("blocked_until", *blockedUntil),
		)
	}
}

// ClearEmail removes the attempt records for an email across all IPs.
// Called after a password reset since the credentials changed.
func (l *LoginRateLimiter) ClearEmail(ctx context.Context, email string) error {
	if err := l.attempts.DeleteByEmail(ctx, limiterKey(email)); err != nil {
		return internalError(err)
	}
	return nil
}
