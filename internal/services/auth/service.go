package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
	"github.com/pkoziel/ogloszybko/internal/pkg/validate"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
)

const minPasswordLength = 8

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmailTaken        = errors.New("email already registered")
	ErrTwoFactorRequired = errors.New("two factor code required")
)

type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, firstName, lastName *string) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (pgrepo.UserCredentials, error)
}

// CodeVerifier checks a TOTP code against a stored secret; implemented by the
// twofactor service.
type CodeVerifier interface {
	VerifyCode(secret, code string, at time.Time) bool
}

type Service struct {
	users      UserStore
	jwtManager *JWTManager
	codes      CodeVerifier
	now        func() time.Time
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

func NewService(users UserStore, jwtManager *JWTManager, codes CodeVerifier) *Service {
	return &Service{
		users:      users,
		jwtManager: jwtManager,
		codes:      codes,
		now:        time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, password string, firstName, lastName *string) (model.User, error) {
	if s.users == nil {
		return model.User{}, fmt.Errorf("auth user store is nil")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !validate.Email(email) {
		return model.User{}, ErrInvalidInput
	}
	if len(password) < minPasswordLength {
		return model.User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash), firstName, lastName)
	if errors.Is(err, pgrepo.ErrEmailTaken) {
		return model.User{}, ErrEmailTaken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies the password and, when 2FA is enabled for the account, a
// TOTP code. Wrong email, wrong password and wrong code all collapse into
// ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password, totpCode string) (Session, error) {
	if s.users == nil || s.jwtManager == nil {
		return Session{}, fmt.Errorf("auth service dependencies are not configured")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidInput
	}

	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if errors.Is(err, pgrepo.ErrUserNotFound) {
		return Session{}, ErrUnauthorized
	}
	if err != nil {
		return Session{}, fmt.Errorf("load credentials: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrUnauthorized
	}

	if creds.TwoFactorEnabled {
		if strings.TrimSpace(totpCode) == "" {
			return Session{}, ErrTwoFactorRequired
		}
		if s.codes == nil || creds.TwoFactorSecret == nil ||
			!s.codes.VerifyCode(*creds.TwoFactorSecret, totpCode, s.now().UTC()) {
			return Session{}, ErrUnauthorized
		}
	}

	token, expiresAt, err := s.jwtManager.GenerateAccessToken(creds.ID, uuid.NewString())
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}

	user, err := s.users.GetByID(ctx, creds.ID)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) ValidateAccessToken(_ context.Context, raw string) (AccessClaims, error) {
	if s.jwtManager == nil {
		return AccessClaims{}, fmt.Errorf("jwt manager is nil")
	}
	return s.jwtManager.ParseAccessToken(raw)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (model.User, error) {
	if s.users == nil {
		return model.User{}, fmt.Errorf("auth user store is nil")
	}
	if userID <= 0 {
		return model.User{}, ErrInvalidInput
	}
	return s.users.GetByID(ctx, userID)
}
