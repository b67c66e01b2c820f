package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/pkg/database"
)

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *database.Postgres
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.Postgres) TokenRepository {
	return &tokenRepository{db: db}
}

const tokenColumns = `id, user_id, type, secret, expires_at, created_at`

func scanToken(row interface{ Scan(...any) error }) (*domain.Token, error) {
	token := &domain.Token{}

	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Type,
		&token.Secret,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// Replace deletes any existing tokens of the same (user, type) and inserts
// the new one inside a single transaction, so two concurrent calls cannot
// both leave a live token behind.
func (r *tokenRepository) Replace(ctx context.Context, token *domain.Token) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM tokens WHERE user_id = $1 AND type = $2`,
		token.UserID, token.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to delete superseded tokens: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, type, secret, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID,
		token.UserID,
		token.Type,
		token.Secret,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return fmt.Errorf("token secret collision: %w", ErrDuplicateSecret)
			}
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token replacement: %w", err)
	}

	return nil
}

// GetBySecret retrieves a token by its secret. Exact match only.
func (r *tokenRepository) GetBySecret(ctx context.Context, secret string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE secret = $1`

	token, err := scanToken(r.db.DB.QueryRowContext(ctx, query, secret))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get token by secret: %w", err)
	}

	return token, nil
}

// GetLatest retrieves the most recently created token of a type for a user
func (r *tokenRepository) GetLatest(ctx context.Context, userID string, tokenType domain.TokenType) (*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	token, err := scanToken(r.db.DB.QueryRowContext(ctx, query, userID, tokenType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no %s token for user %s: %w", tokenType, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest token: %w", err)
	}

	return token, nil
}

// Delete deletes a token by ID
func (r *tokenRepository) Delete(ctx context.Context, tokenID string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("token with id %s not found: %w", tokenID, ErrNotFound)
	}

	return nil
}

// DeleteByUser deletes all tokens of any type for a user
func (r *tokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.DB.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}

	return nil
}

// DeleteExpired deletes all tokens that expired before the cutoff
func (r *tokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
