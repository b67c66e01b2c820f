package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/dto"
	"github.com/mpoirier/auth-core/internal/repository"
	"github.com/mpoirier/auth-core/internal/utils"
	"github.com/mpoirier/auth-core/pkg/observability"
	"go.uber.org/zap"
)

// The reset request response never reveals whether the email exists.
const passwordResetRequestedMessage = "If the email address exists in our system, you will receive a password reset link shortly."

// authService composes the token manager, login rate limiter, credential
// store, and password hasher into the user-facing authentication flows.
type authService struct {
	users    repository.UserRepository
	tokens   *TokenManager
	limiter  *LoginRateLimiter
	hasher   PasswordHasher
	mailer   Mailer
	logger   *zap.Logger
	metrics  *observability.AuthMetrics
	clock    Clock
	cooldown time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(
	users repository.UserRepository,
	tokens *TokenManager,
	limiter *LoginRateLimiter,
	hasher PasswordHasher,
	mailer Mailer,
	logger *zap.Logger,
	metrics *observability.AuthMetrics,
	clock Clock,
	cooldown time.Duration,
) AuthService {
	return &authService{
		users:    users,
		tokens:   tokens,
		limiter:  limiter,
		hasher:   hasher,
		mailer:   mailer,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		cooldown: cooldown,
	}
}

// Register creates an unverified account and dispatches a verification
// email. It never establishes a session; the user must verify first.
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest, locale string) (*domain.PublicUser, error) {
	email := utils.SanitizeEmail(req.Email)

	if !utils.ValidatePassword(req.Password) {
		return nil, ErrPasswordPolicy
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internalError(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError(err)
	}

	user := &domain.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The unique constraint may still fire under a concurrent register
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, internalError(err)
	}

	token, err := s.tokens.Create(ctx, user.ID, domain.TokenTypeEmailVerification)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(ctx, string(domain.TokenTypeEmailVerification))

	s.dispatchEmail(ctx, user.Public(), token.Secret, locale, domain.TokenTypeEmailVerification)

	return user.Public(), nil
}

// Login authenticates the user, enforcing the per-(email, ip) rate limit.
// An unverified email counts as a failed attempt, so the login endpoint
// cannot be used as a verification-status oracle.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress string) (*LoginResult, error) {
	email := utils.SanitizeEmail(req.Email)

	// Snapshot the limiter state before recording anything, so the
	// remaining-attempts count reported below is consistent.
	check := s.limiter.Check(ctx, email, ipAddress)
	if check.Blocked {
		s.metrics.Login(ctx, "blocked")
		return nil, &RateLimitError{
			RetryAfter:   check.RetryAfter,
			BlockedUntil: check.BlockedUntil,
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.failLogin(ctx, email, ipAddress, check, ErrInvalidCredentials)
		}
		return nil, internalError(err)
	}

	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, s.failLogin(ctx, email, ipAddress, check, ErrInvalidCredentials)
	}

	if !user.EmailVerified {
		return nil, s.failLogin(ctx, email, ipAddress, check, ErrEmailNotVerified)
	}

	s.limiter.Record(ctx, email, ipAddress, true)
	s.metrics.Login(ctx, "success")

	return &LoginResult{
		User:    user.Public(),
		Message: "Login successful",
	}, nil
}

// failLogin records the failed attempt and annotates the error with the
// number of attempts left after this one.
func (s *authService) failLogin(ctx context.Context, email, ipAddress string, check CheckResult, kind error) error {
	s.limiter.Record(ctx, email, ipAddress, false)
	s.metrics.Login(ctx, "failure")

	remaining := check.RemainingAttempts - 1
	if remaining < 0 {
		remaining = 0
	}

	return fmt.Errorf("%w (%d attempts remaining)", kind, remaining)
}

// VerifyEmail consumes an email verification token and marks the owning
// account as verified. The caller establishes a session afterwards.
func (s *authService) VerifyEmail(ctx context.Context, secret string) (*domain.PublicUser, error) {
	user, err := s.tokens.ValidateAndConsume(ctx, secret, domain.TokenTypeEmailVerification)
	if err != nil {
		return nil, err
	}

	verified, err := s.users.MarkEmailVerified(ctx, user.ID, s.clock.Now())
	if err != nil {
		return nil, internalError(err)
	}

	return verified.Public(), nil
}

// ResendVerification issues a fresh verification token, subject to the
// per-user cooldown on the previous token's creation time.
func (s *authService) ResendVerification(ctx context.Context, email, locale string) (*MessageResult, error) {
	user, err := s.users.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError(err)
	}

	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.checkCooldown(ctx, user.ID, domain.TokenTypeEmailVerification); err != nil {
		return nil, err
	}

	token, err := s.tokens.Create(ctx, user.ID, domain.TokenTypeEmailVerification)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(ctx, string(domain.TokenTypeEmailVerification))

	s.dispatchEmail(ctx, user.Public(), token.Secret, locale, domain.TokenTypeEmailVerification)

	return &MessageResult{
		Message: "Verification email sent successfully",
		Email:   user.Email,
	}, nil
}

// RequestPasswordReset always reports the same outcome whether or not the
// email exists; the cooldown check, token creation, and email dispatch only
// happen for real accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, email, locale string) (*MessageResult, error) {
	sanitized := utils.SanitizeEmail(email)
	result := &MessageResult{
		Message: passwordResetRequestedMessage,
		Email:   sanitized,
	}

	user, err := s.users.GetByEmail(ctx, sanitized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		return nil, internalError(err)
	}

	if err := s.checkCooldown(ctx, user.ID, domain.TokenTypePasswordReset); err != nil {
		return nil, err
	}

	token, err := s.tokens.Create(ctx, user.ID, domain.TokenTypePasswordReset)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(ctx, string(domain.TokenTypePasswordReset))

	s.dispatchEmail(ctx, user.Public(), token.Secret, locale, domain.TokenTypePasswordReset)

	return result, nil
}

// ResetPassword consumes a reset token and replaces the password. All
// remaining tokens and login-attempt records for the account are cleared
// since the credentials changed.
func (s *authService) ResetPassword(ctx context.Context, secret, newPassword string) (*MessageResult, error) {
	if !utils.ValidatePassword(newPassword) {
		return nil, ErrPasswordPolicy
	}

	user, err := s.tokens.ValidateAndConsume(ctx, secret, domain.TokenTypePasswordReset)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, internalError(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, internalError(err)
	}

	if err := s.tokens.DeleteUserTokens(ctx, user.ID); err != nil {
		return nil, err
	}

	if err := s.limiter.ClearEmail(ctx, user.Email); err != nil {
		return nil, err
	}

	return &MessageResult{
		Message: "Password reset successfully",
		Email:   user.Email,
	}, nil
}

// GetUser returns the public projection of a user by id
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError(err)
	}

	return user.Public(), nil
}

func (s *authService) checkCooldown(ctx context.Context, userID string, tokenType domain.TokenType) error {
	remaining, err := s.tokens.CooldownRemaining(ctx, userID, tokenType, s.cooldown)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &RateLimitError{RetryAfter: remaining}
	}
	return nil
}

// dispatchEmail sends the token email in the background. Delivery failures
// are logged and never surfaced to the triggering flow.
func (s *authService) dispatchEmail(ctx context.Context, user *domain.PublicUser, secret, locale string, tokenType domain.TokenType) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		var err error
		switch tokenType {
		case domain.TokenTypePasswordReset:
			err = s.mailer.SendPasswordResetEmail(ctx, user, secret, locale)
		default:
			err = s.mailer.SendVerificationEmail(ctx, user, secret, locale)
		}
		if err != nil {
			s.logger.Error("failed to send auth email",
				zap.String("type", string(tokenType)),
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
	}()
}
