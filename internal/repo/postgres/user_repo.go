package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	uniqueViolationSQL = "23505"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

// UserCredentials is the private slice of a user row: never serialized, only
// handed to the auth and twofactor services.
type UserCredentials struct {
	ID               int64
	Email            string
	PasswordHash     string
	TwoFactorSecret  *string
	TwoFactorEnabled bool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, email, passwordHash string, firstName, lastName *string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(email) == "" || passwordHash == "" {
		return model.User{}, fmt.Errorf("email and password hash are required")
	}

	var user model.User
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, first_name, last_name, two_factor_enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
RETURNING id, email, first_name, last_name, phone, two_factor_enabled, created_at, updated_at
`, strings.ToLower(strings.TrimSpace(email)), passwordHash, firstName, lastName).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone,
		&user.TwoFactorEnabled, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.User{}, ErrUserNotFound
	}

	var user model.User
	err := r.pool.QueryRow(ctx, `
SELECT id, email, first_name, last_name, phone, two_factor_enabled, created_at, updated_at
FROM users
WHERE id = $1
`, id).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone,
		&user.TwoFactorEnabled, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	return r.getCredentials(ctx, `WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) GetCredentialsByID(ctx context.Context, id int64) (UserCredentials, error) {
	return r.getCredentials(ctx, `WHERE id = $1`, id)
}

func (r *UserRepo) getCredentials(ctx context.Context, where string, arg any) (UserCredentials, error) {
	if r.pool == nil {
		return UserCredentials{}, fmt.Errorf("postgres pool is nil")
	}

	var creds UserCredentials
	err := r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, two_factor_secret, two_factor_enabled
FROM users
`+where, arg).Scan(
		&creds.ID, &creds.Email, &creds.PasswordHash, &creds.TwoFactorSecret, &creds.TwoFactorEnabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserCredentials{}, ErrUserNotFound
	}
	if err != nil {
		return UserCredentials{}, fmt.Errorf("get user credentials: %w", err)
	}
	return creds, nil
}

func (r *UserRepo) SetTwoFactorSecret(ctx context.Context, id int64, secret string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || secret == "" {
		return fmt.Errorf("invalid two factor payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET two_factor_secret = $2, updated_at = NOW()
WHERE id = $1
`, id, secret)
	if err != nil {
		return fmt.Errorf("set two factor secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) EnableTwoFactor(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return ErrUserNotFound
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET two_factor_enabled = TRUE, updated_at = NOW()
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
