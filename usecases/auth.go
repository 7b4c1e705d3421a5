package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"energy-server/auth"
	"energy-server/cache"
	"energy-server/entities"
	"energy-server/metrics"
	"energy-server/repositories"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10
	minPasswordLength = 6
)

var ErrEmailTaken = fmt.Errorf("email already exists: %w", ErrConflict)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginResult struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
	FromCache bool
}

type AuthUseCase struct {
	users      repositories.UserRepository
	sessions   cache.SessionCache
	tokens     *auth.TokenManager
	hasher     PasswordHasher
	sessionTTL time.Duration
	log        zerolog.Logger
}

func NewAuthUseCase(users repositories.UserRepository, sessions cache.SessionCache, tokens *auth.TokenManager, sessionTTL time.Duration, log zerolog.Logger) *AuthUseCase {
	return &AuthUseCase{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     BcryptHasher{Cost: DefaultBcryptCost},
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// WithHasher swaps the password hasher.
func (uc *AuthUseCase) WithHasher(h PasswordHasher) *AuthUseCase {
	uc.hasher = h
	return uc
}

func (uc *AuthUseCase) TokenTTL() time.Duration { return uc.tokens.TTL() }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with a bcrypt hashed password.
func (uc *AuthUseCase) Register(ctx context.Context, in RegisterInput) (*entities.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	v := &ValidationError{}
	if in.Name == "" {
		v.add("name", "name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		v.add("email", "a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		v.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if _, err := uc.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entities.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	uc.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login issues a token. A cached session for the email short-circuits the
// password check; otherwise the credentials are verified and the session is
// cached for sessionTTL.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	v := &ValidationError{}
	if email == "" {
		v.add("email", "email is required")
	}
	if password == "" {
		v.add("password", "password is required")
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	key := cache.SessionKey(email)

	if entry, ok := uc.cachedSession(ctx, key); ok {
		metrics.RecordSessionLookup(true)
		return uc.issue(entry.UserID, email, true)
	}
	metrics.RecordSessionLookup(false)

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := uc.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	res, err := uc.issue(user.ID, user.Email, false)
	if err != nil {
		return nil, err
	}

	raw, err := cache.SessionEntry{UserID: user.ID, Email: user.Email}.Encode()
	if err == nil {
		err = uc.sessions.Set(ctx, key, raw, uc.sessionTTL)
	}
	if err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("failed to cache session")
	}

	return res, nil
}

func (uc *AuthUseCase) cachedSession(ctx context.Context, key string) (cache.SessionEntry, bool) {
	raw, ok, err := uc.sessions.Get(ctx, key)
	if err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("session cache lookup failed")
		return cache.SessionEntry{}, false
	}
	if !ok {
		return cache.SessionEntry{}, false
	}
	entry, err := cache.DecodeSession(raw)
	if err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable session entry")
		return cache.SessionEntry{}, false
	}
	return entry, true
}

func (uc *AuthUseCase) issue(userID, email string, fromCache bool) (*LoginResult, error) {
	token, exp, err := uc.tokens.Generate(userID, email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		UserID:    userID,
		Email:     email,
		Token:     token,
		ExpiresAt: exp,
		FromCache: fromCache,
	}, nil
}

// Logout drops the cached session of the token's owner. Missing and expired
// tokens are treated as already logged out.
func (uc *AuthUseCase) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := uc.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil
		}
		return err
	}

	email := claims.Email
	if email == "" {
		user, err := uc.users.GetByID(ctx, claims.UserID)
		if err != nil {
			uc.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("logout: cannot resolve session owner")
			return nil
		}
		email = user.Email
	}

	key := cache.SessionKey(email)
	if _, err := uc.sessions.Delete(ctx, key); err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("failed to drop cached session")
	}
	return nil
}

// Authenticate validates a request token.
func (uc *AuthUseCase) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	return uc.tokens.Parse(token)
}

func (uc *AuthUseCase) Profile(ctx context.Context, userID string) (*entities.User, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}
