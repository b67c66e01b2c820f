package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/repository"
)

const tokenSecretBytes = 32

// TokenManager issues and validates the single-use, typed, expiring tokens
// backing email verification and password reset. Creating a token of a
// given type supersedes any prior token of that type for the same user.
type TokenManager struct {
	tokens          repository.TokenRepository
	users           repository.UserRepository
	clock           Clock
	verificationTTL time.Duration
	resetTTL        time.Duration
}

// NewTokenManager creates a new token manager
func NewTokenManager(
	tokens repository.TokenRepository,
	users repository.UserRepository,
	clock Clock,
	verificationTTL, resetTTL time.Duration,
) *TokenManager {
	return &TokenManager{
		tokens:          tokens,
		users:           users,
		clock:           clock,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

func (m *TokenManager) ttl(tokenType domain.TokenType) time.Duration {
	if tokenType == domain.TokenTypePasswordReset {
		return m.resetTTL
	}
	return m.verificationTTL
}

func generateSecret() (string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create issues a new token for the user, invalidating any existing tokens
// of the same type as a side effect.
func (m *TokenManager) Create(ctx context.Context, userID string, tokenType domain.TokenType) (*domain.Token, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, internalError(err)
	}

	now := m.clock.Now()
	token := &domain.Token{
		UserID:    userID,
		Type:      tokenType,
		Secret:    secret,
		ExpiresAt: now.Add(m.ttl(tokenType)),
		CreatedAt: now,
	}

	if err := m.tokens.Replace(ctx, token); err != nil {
		return nil, internalError(err)
	}

	return token, nil
}

// Validate looks up a token by secret and returns the owning user. A token
// of the wrong type or an unknown secret yields ErrInvalidToken; a token at
// or past its expiry yields ErrTokenExpired and is deleted as a side effect.
// With consume set, the token is deleted as part of the same operation, so
// a second call with the same secret fails with ErrInvalidToken.
func (m *TokenManager) Validate(ctx context.Context, secret string, tokenType domain.TokenType, consume bool) (*domain.User, error) {
	token, err := m.tokens.GetBySecret(ctx, secret)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, internalError(err)
	}

	if token.Type != tokenType {
		return nil, ErrInvalidToken
	}

	if token.ExpiredAt(m.clock.Now()) {
		// Remove the stale row so later lookups fail uniformly
		if err := m.tokens.Delete(ctx, token.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, internalError(err)
		}
		return nil, ErrTokenExpired
	}

	if consume {
		if err := m.tokens.Delete(ctx, token.ID); err != nil {
			// A concurrent call consumed it first
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, internalError(err)
		}
	}

	user, err := m.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, internalError(err)
	}

	return user, nil
}

// ValidateAndConsume validates the token and deletes it in the same
// operation.
func (m *TokenManager) ValidateAndConsume(ctx context.Context, secret string, tokenType domain.TokenType) (*domain.User, error) {
	return m.Validate(ctx, secret, tokenType, true)
}

// DeleteUserTokens removes every token, of any type, for a user. Called
// after a password reset as security hygiene.
func (m *TokenManager) DeleteUserTokens(ctx context.Context, userID string) error {
	if err := m.tokens.DeleteByUser(ctx, userID); err != nil {
		return internalError(err)
	}
	return nil
}

// HasValidToken reports whether the user holds an unexpired token of the
// given type.
func (m *TokenManager) HasValidToken(ctx context.Context, userID string, tokenType domain.TokenType) (bool, error) {
	token, err := m.tokens.GetLatest(ctx, userID, tokenType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, internalError(err)
	}

	return !token.ExpiredAt(m.clock.Now()), nil
}

// CooldownRemaining returns how long the user must still wait before a new
// token of the given type may be issued, based on the creation time of the
// most recent token. Zero means no cooldown is in effect.
func (m *TokenManager) CooldownRemaining(ctx context.Context, userID string, tokenType domain.TokenType, cooldown time.Duration) (time.Duration, error) {
	token, err := m.tokens.GetLatest(ctx, userID, tokenType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, internalError(err)
	}

	elapsed := m.clock.Now().Sub(token.CreatedAt)
	if elapsed >= cooldown {
		return 0, nil
	}

	return cooldown - elapsed, nil
}
