package repository

import (
	"context"
	"time"

	"github.com/mpoirier/auth-core/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, userID string, verifiedAt time.Time) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenRepository defines methods for single-use token operations.
// Replace atomically supersedes all tokens of the same (user, type).
type TokenRepository interface {
	Replace(ctx context.Context, token *domain.Token) error
	GetBySecret(ctx context.Context, secret string) (*domain.Token, error)
	GetLatest(ctx context.Context, userID string, tokenType domain.TokenType) (*domain.Token, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// LoginAttemptRepository defines methods for the per-(email, ip) failure
// counters backing the login rate limiter.
type LoginAttemptRepository interface {
	Get(ctx context.Context, email, ipAddress string) (*domain.LoginAttempt, error)
	Upsert(ctx context.Context, attempt *domain.LoginAttempt) error
	Delete(ctx context.Context, email, ipAddress string) error
	DeleteByEmail(ctx context.Context, email string) error
	DeleteStale(ctx context.Context, lastAttemptBefore, blockedBefore time.Time) (int64, error)
}
