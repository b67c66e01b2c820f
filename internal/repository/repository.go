package repository

import (
	"github.com/mpoirier/auth-core/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User         UserRepository
	Token        TokenRepository
	LoginAttempt LoginAttemptRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Token:        NewTokenRepository(db),
		LoginAttempt: NewLoginAttemptRepository(db),
	}
}
