package service

import (
	"context"
	"time"

	"github.com/mpoirier/auth-core/pkg/database"
	"go.uber.org/zap"
)

// RequestLimiter is a coarse per-IP throttle for the unauthenticated
// token-issuing endpoints (register, forgot-password), in front of the
// finer per-(email, ip) login limiter. It counts requests per key in Redis
// with a fixed window and fails open when Redis is unreachable.
type RequestLimiter struct {
	redis  *database.Redis
	logger *zap.Logger
	limit  int
	window time.Duration
}

// NewRequestLimiter creates a new request limiter
func NewRequestLimiter(redis *database.Redis, logger *zap.Logger, limit int, window time.Duration) *RequestLimiter {
	return &RequestLimiter{
		redis:  redis,
		logger: logger,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether a request for the key is within the limit, and how
// many requests remain in the current window.
func (l *RequestLimiter) Allow(ctx context.Context, key string) (allowed bool, remaining int) {
	redisKey := "reqlimit:" + key

	count, err := l.redis.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Error("request limit check failed, failing open",
			zap.String("key", key),
			zap.Error(err),
		)
		return true, l.limit
	}

	if count == 1 {
		if err := l.redis.Client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Error("failed to set request limit expiry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	remaining = l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= int64(l.limit), remaining
}
