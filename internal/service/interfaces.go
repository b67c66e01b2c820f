package service

import (
	"context"

	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/dto"
)

// AuthService defines the user-facing authentication flows
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest, locale string) (*domain.PublicUser, error)
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress string) (*LoginResult, error)
	VerifyEmail(ctx context.Context, secret string) (*domain.PublicUser, error)
	ResendVerification(ctx context.Context, email, locale string) (*MessageResult, error)
	RequestPasswordReset(ctx context.Context, email, locale string) (*MessageResult, error)
	ResetPassword(ctx context.Context, secret, newPassword string) (*MessageResult, error)
	GetUser(ctx context.Context, userID string) (*domain.PublicUser, error)
}

// PasswordHasher abstracts the memory-hard password hashing primitive
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) bool
}

// Mailer delivers outbound authentication emails. Calls are fire-and-forget
// from the orchestrator's point of view; failures are logged, never rolled
// back into the triggering flow.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error
	SendPasswordResetEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error
}

// LoginResult is returned on successful authentication, ready to hand to
// the session layer.
type LoginResult struct {
	User    *domain.PublicUser
	Message string
}

// MessageResult is the outcome of the token-issuing flows
type MessageResult struct {
	Message string
	Email   string
}
