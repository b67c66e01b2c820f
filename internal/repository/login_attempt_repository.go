package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/pkg/database"
)

// loginAttemptRepository implements LoginAttemptRepository interface
type loginAttemptRepository struct {
	db *database.Postgres
}

// NewLoginAttemptRepository creates a new login attempt repository
func NewLoginAttemptRepository(db *database.Postgres) LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

// Get retrieves the attempt record for an (email, ip) pair
func (r *loginAttemptRepository) Get(ctx context.Context, email, ipAddress string) (*domain.LoginAttempt, error) {
	query := `
		SELECT id, email, ip_address, attempt_count, last_attempt_at, blocked_until
		FROM login_attempts
		WHERE email = $1 AND ip_address = $2
	`

	attempt := &domain.LoginAttempt{}
	var blockedUntil sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, email, ipAddress).Scan(
		&attempt.ID,
		&attempt.Email,
		&attempt.IPAddress,
		&attempt.AttemptCount,
		&attempt.LastAttemptAt,
		&blockedUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no attempt record for %s/%s: %w", email, ipAddress, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get login attempt: %w", err)
	}

	if blockedUntil.Valid {
		attempt.BlockedUntil = &blockedUntil.Time
	}

	return attempt, nil
}

// Upsert writes the attempt record, relying on the (email, ip_address)
// unique constraint so a find-then-create race collapses into one row.
func (r *loginAttemptRepository) Upsert(ctx context.Context, attempt *domain.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	var blockedUntil sql.NullTime
	if attempt.BlockedUntil != nil {
		blockedUntil = sql.NullTime{Time: *attempt.BlockedUntil, Valid: true}
	}

	query := `
		INSERT INTO login_attempts (id, email, ip_address, attempt_count, last_attempt_at, blocked_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email, ip_address) DO UPDATE
		SET attempt_count = EXCLUDED.attempt_count,
		    last_attempt_at = EXCLUDED.last_attempt_at,
		    blocked_until = EXCLUDED.blocked_until
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.IPAddress,
		attempt.AttemptCount,
		attempt.LastAttemptAt,
		blockedUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert login attempt: %w", err)
	}

	return nil
}

// Delete removes the record for an (email, ip) pair. Missing rows are not
// an error; a successful login simply has nothing to clear.
func (r *loginAttemptRepository) Delete(ctx context.Context, email, ipAddress string) error {
	_, err := r.db.DB.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE email = $1 AND ip_address = $2`,
		email, ipAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to delete login attempt: %w", err)
	}

	return nil
}

// DeleteByEmail removes all records for an email across every IP
func (r *loginAttemptRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.DB.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete login attempts by email: %w", err)
	}

	return nil
}

// DeleteStale removes rows whose last attempt predates lastAttemptBefore or
// whose block expired before blockedBefore. Used by the housekeeping job.
func (r *loginAttemptRepository) DeleteStale(ctx context.Context, lastAttemptBefore, blockedBefore time.Time) (int64, error) {
	query := `
		DELETE FROM login_attempts
		WHERE last_attempt_at < $1
		   OR (blocked_until IS NOT NULL AND blocked_until < $2)
	`

	result, err := r.db.DB.ExecContext(ctx, query, lastAttemptBefore, blockedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale login attempts: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
