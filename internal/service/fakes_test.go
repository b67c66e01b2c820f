package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mpoirier/auth-core/internal/domain"
	"github.com/mpoirier/auth-core/internal/repository"
)

// fakeClock is a manually advanced Clock for deterministic window and
// expiry arithmetic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) MarkEmailVerified(ctx context.Context, userID string, verifiedAt time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.EmailVerified = true
	u.EmailVerifiedAt = &verifiedAt
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memUserRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, u := range r.users {
		if !u.EmailVerified && u.CreatedAt.Before(cutoff) {
			delete(r.users, id)
			deleted++
		}
	}
	return deleted, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*domain.Token)}
}

func (r *memTokenRepo) Replace(ctx context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == token.UserID && t.Type == token.Type {
			delete(r.tokens, id)
		}
	}

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	clone := *token
	r.tokens[token.ID] = &clone
	return nil
}

func (r *memTokenRepo) GetBySecret(ctx context.Context, secret string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.Secret == secret {
			clone := *t
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTokenRepo) GetLatest(ctx context.Context, userID string, tokenType domain.TokenType) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.Token
	for _, t := range r.tokens {
		if t.UserID == userID && t.Type == tokenType {
			if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
				latest = t
			}
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *memTokenRepo) Delete(ctx context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tokenID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tokens, tokenID)
	return nil
}

func (r *memTokenRepo) DeleteByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *memTokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, t := range r.tokens {
		if !t.ExpiresAt.After(cutoff) {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*domain.LoginAttempt
	failGet  error
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{attempts: make(map[string]*domain.LoginAttempt)}
}

func attemptKey(email, ip string) string {
	return email + "|" + ip
}

func (r *memAttemptRepo) Get(ctx context.Context, email, ipAddress string) (*domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failGet != nil {
		return nil, r.failGet
	}

	a, ok := r.attempts[attemptKey(email, ipAddress)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *memAttemptRepo) Upsert(ctx context.Context, attempt *domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	clone := *attempt
	r.attempts[attemptKey(attempt.Email, attempt.IPAddress)] = &clone
	return nil
}

func (r *memAttemptRepo) Delete(ctx context.Context, email, ipAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, attemptKey(email, ipAddress))
	return nil
}

func (r *memAttemptRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, a := range r.attempts {
		if a.Email == email {
			delete(r.attempts, key)
		}
	}
	return nil
}

func (r *memAttemptRepo) DeleteStale(ctx context.Context, lastAttemptBefore, blockedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, a := range r.attempts {
		stale := a.LastAttemptAt.Before(lastAttemptBefore)
		if !stale && a.BlockedUntil != nil && a.BlockedUntil.Before(blockedBefore) {
			stale = true
		}
		if stale {
			delete(r.attempts, key)
			deleted++
		}
	}
	return deleted, nil
}

// fakeHasher trades bcrypt for a transparent encoding so assertions can
// distinguish old and new digests.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(digest, password string) bool {
	return digest == "hashed:"+password
}

type sentMail struct {
	tokenType domain.TokenType
	userID    string
	secret    string
	locale    string
}

// recordingMailer captures dispatched emails. Sends happen on background
// goroutines, so tests wait on the channel rather than polling state.
type recordingMailer struct {
	ch chan sentMail
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{ch: make(chan sentMail, 16)}
}

func (m *recordingMailer) SendVerificationEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	m.ch <- sentMail{tokenType: domain.TokenTypeEmailVerification, userID: user.ID, secret: secret, locale: locale}
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	m.ch <- sentMail{tokenType: domain.TokenTypePasswordReset, userID: user.ID, secret: secret, locale: locale}
	return nil
}

func (m *recordingMailer) wait(timeout time.Duration) (sentMail, bool) {
	select {
	case mail := <-m.ch:
		return mail, true
	case <-time.After(timeout):
		return sentMail{}, false
	}
}

var _ repository.UserRepository = (*memUserRepo)(nil)
var _ repository.TokenRepository = (*memTokenRepo)(nil)
var _ repository.LoginAttemptRepository = (*memAttemptRepo)(nil)
var _ Mailer = (*recordingMailer)(nil)
var _ PasswordHasher = fakeHasher{}
