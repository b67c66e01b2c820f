package service

import (
	"context"
	"time"

	"github.com/mpoirier/auth-core/internal/repository"
	"go.uber.org/zap"
)

// Cleaner periodically removes rows the auth flows no longer need: expired
// tokens, stale login-attempt records, and accounts that never verified
// their email within the retention period.
type Cleaner struct {
	users               repository.UserRepository
	tokens              repository.TokenRepository
	attempts            repository.LoginAttemptRepository
	logger              *zap.Logger
	clock               Clock
	interval            time.Duration
	attemptRetention    time.Duration
	unverifiedRetention time.Duration
}

// NewCleaner creates a new cleanup job
func NewCleaner(
	repos *repository.Repositories,
	logger *zap.Logger,
	clock Clock,
	interval, attemptRetention, unverifiedRetention time.Duration,
) *Cleaner {
	return &Cleaner{
		users:               repos.User,
		tokens:              repos.Token,
		attempts:            repos.LoginAttempt,
		logger:              logger,
		clock:               clock,
		interval:            interval,
		attemptRetention:    attemptRetention,
		unverifiedRetention: unverifiedRetention,
	}
}

// Run executes the cleanup loop until the context is cancelled. One pass
// runs immediately on start.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	now := c.clock.Now()

	tokens, err := c.tokens.DeleteExpired(ctx, now)
	if err != nil {
		c.logger.Error("failed to clean up expired tokens", zap.Error(err))
	}

	attempts, err := c.attempts.DeleteStale(ctx, now.Add(-c.attemptRetention), now)
	if err != nil {
		c.logger.Error("failed to clean up login attempts", zap.Error(err))
	}

	users, err := c.users.DeleteUnverifiedBefore(ctx, now.Add(-c.unverifiedRetention))
	if err != nil {
		c.logger.Error("failed to clean up unverified users", zap.Error(err))
	}

	if tokens > 0 || attempts > 0 || users > 0 {
		c.logger.Info("cleanup pass finished",
			zap.Int64("expired_tokens", tokens),
			zap.Int64("stale_attempts", attempts),
			zap.Int64("unverified_users", users),
		)
	}
}
