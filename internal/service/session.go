package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/pkg/database"
)

// ErrInvalidSession is returned for malformed, expired, or revoked session
// tokens.
var ErrInvalidSession = errors.New("invalid session")

const sessionKeyPrefix = "session:"

// SessionClaims is the authenticated identity carried by a session token.
type SessionClaims struct {
	ID         string
	UserID     string
	Email      string
	LoggedInAt time.Time
}

// SessionService is the sink for successful authentications. It issues
// signed session tokens and tracks live session ids in Redis so that
// logout revokes a token before its signature expires.
type SessionService struct {
	redis  *database.Redis
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewSessionService creates a new session service
func NewSessionService(redis *database.Redis, secret string, ttl time.Duration, clock Clock) *SessionService {
	return &SessionService{
		redis:  redis,
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

// Issue signs a session token for the user and registers its id in Redis
// with the session TTL.
func (s *SessionService) Issue(ctx context.Context, session *domain.Session) (string, error) {
	id := uuid.New().String()
	now := s.clock.Now()

	claims := jwt.MapClaims{
		"jti":          id,
		"sub":          session.User.ID,
		"email":        session.User.Email,
		"logged_in_at": session.LoggedInAt.Unix(),
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", internalError(fmt.Errorf("failed to sign session token: %w", err))
	}

	if err := s.redis.Client.Set(ctx, sessionKeyPrefix+id, session.User.ID, s.ttl).Err(); err != nil {
		return "", internalError(fmt.Errorf("failed to register session: %w", err))
	}

	return signed, nil
}

// Validate checks the token signature and that the session id is still
// registered, returning the embedded claims.
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	exists, err := s.redis.Client.Exists(ctx, sessionKeyPrefix+claims.ID).Result()
	if err != nil {
		return nil, internalError(fmt.Errorf("failed to check session registry: %w", err))
	}
	if exists == 0 {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

// Revoke removes the token's session id from the registry. Revoking an
// unknown or already revoked session is not an error.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}

	if err := s.redis.Client.Del(ctx, sessionKeyPrefix+claims.ID).Err(); err != nil {
		return internalError(fmt.Errorf("failed to revoke session: %w", err))
	}

	return nil
}

func (s *SessionService) parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	id, _ := claims["jti"].(string)
	userID, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	loggedInAt, _ := claims["logged_in_at"].(float64)

	if id == "" || userID == "" {
		return nil, ErrInvalidSession
	}

	return &SessionClaims{
		ID:         id,
		UserID:     userID,
		Email:      email,
		LoggedInAt: time.Unix(int64(loggedInAt), 0),
	}, nil
}
