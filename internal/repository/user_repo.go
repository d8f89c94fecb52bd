package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-gate/internal/domain"
)

var (
	// ErrNotFound se devuelve cuando no existe el usuario buscado.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail se devuelve cuando el email ya está registrado.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// Update persiste todos los campos mutables del usuario (read-modify-save).
	Update(ctx context.Context, user domain.User) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, name, email, password_hash, email_verified_at,
	verification_code_hash, verification_code_expires_at,
	two_factor_code_hash, two_factor_code_expires_at,
	two_factor_verified, two_factor_session_expires_at,
	created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.EmailVerifiedAt,
		nullableString(user.VerificationCodeHash),
		user.VerificationCodeExpiresAt,
		nullableString(user.TwoFactorCodeHash),
		user.TwoFactorCodeExpiresAt,
		user.TwoFactorVerified,
		user.TwoFactorSessionExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users SET
			name = $2,
			password_hash = $3,
			email_verified_at = $4,
			verification_code_hash = $5,
			verification_code_expires_at = $6,
			two_factor_code_hash = $7,
			two_factor_code_expires_at = $8,
			two_factor_verified = $9,
			two_factor_session_expires_at = $10,
			updated_at = $11
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.PasswordHash,
		user.EmailVerifiedAt,
		nullableString(user.VerificationCodeHash),
		user.VerificationCodeExpiresAt,
		nullableString(user.TwoFactorCodeHash),
		user.TwoFactorCodeExpiresAt,
		user.TwoFactorVerified,
		user.TwoFactorSessionExpiresAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u             domain.User
		verifyHash    *string
		twoFactorHash *string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&verifyHash,
		&u.VerificationCodeExpiresAt,
		&twoFactorHash,
		&u.TwoFactorCodeExpiresAt,
		&u.TwoFactorVerified,
		&u.TwoFactorSessionExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if verifyHash != nil {
		u.VerificationCodeHash = *verifyHash
	}
	if twoFactorHash != nil {
		u.TwoFactorCodeHash = *twoFactorHash
	}
	return u, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
