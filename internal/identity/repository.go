package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a phone or email is already registered.
	ErrUserExists = errors.New("user exists")
	// ErrOTPNotFound is returned when no code is outstanding for an identifier.
	ErrOTPNotFound = errors.New("otp not found")
)

// Repository persists users and their outstanding codes.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, user User) error
	SaveOTP(ctx context.Context, otp OTP) error
	FindOTP(ctx context.Context, identifier string) (OTP, error)
	DeleteOTP(ctx context.Context, identifier string) error
}

// Schema is the DDL the Postgres repository expects.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		phone TEXT UNIQUE,
		email TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		partnership_number TEXT NOT NULL DEFAULT '',
		user_type TEXT NOT NULL DEFAULT '',
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		has_business_profile BOOLEAN NOT NULL DEFAULT FALSE,
		profile_image_url TEXT NOT NULL DEFAULT '',
		token_version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS otp_codes (
		identifier TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code_hash BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

const userColumns = `id, COALESCE(phone, ''), COALESCE(email, ''), first_name, last_name,
	partnership_number, user_type, is_verified, phone_verified, has_business_profile,
	profile_image_url, token_version, created_at, last_login`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (phone, email, first_name, last_name, partnership_number, user_type, created_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, $7) RETURNING id`,
		user.Phone, user.Email, user.FirstName, user.LastName, user.PartnershipNumber, user.UserType, user.CreatedAt.UTC())
	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (User, error) {
	var (
		user      User
		createdAt time.Time
		lastLogin *time.Time
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Phone, &user.Email, &user.FirstName, &user.LastName,
		&user.PartnershipNumber, &user.UserType, &user.IsVerified, &user.PhoneVerified, &user.HasBusinessProfile,
		&user.ProfileImageURL, &user.TokenVersion, &createdAt, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.CreatedAt = createdAt.UTC()
	user.LastLogin = lastLogin
	return user, nil
}

// Update writes every mutable column of user.
func (r *PostgresRepository) Update(ctx context.Context, user User) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET email = NULLIF($2, ''), first_name = $3, last_name = $4,
		partnership_number = $5, user_type = $6, is_verified = $7, phone_verified = $8,
		has_business_profile = $9, profile_image_url = $10, token_version = $11, last_login = $12
		WHERE id = $1`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PartnershipNumber, user.UserType,
		user.IsVerified, user.PhoneVerified, user.HasBusinessProfile, user.ProfileImageURL,
		user.TokenVersion, user.LastLogin)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveOTP stores the code for an identifier, replacing any previous one.
func (r *PostgresRepository) SaveOTP(ctx context.Context, otp OTP) error {
	_, err := r.db.Exec(ctx, `INSERT INTO otp_codes (identifier, user_id, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier) DO UPDATE SET user_id = EXCLUDED.user_id, code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at`,
		otp.Identifier, otp.UserID, otp.CodeHash, otp.ExpiresAt.UTC())
	return err
}

// FindOTP returns the outstanding code for identifier.
func (r *PostgresRepository) FindOTP(ctx context.Context, identifier string) (OTP, error) {
	otp := OTP{Identifier: identifier}
	err := r.db.QueryRow(ctx, `SELECT user_id, code_hash, expires_at FROM otp_codes WHERE identifier = $1`, identifier).
		Scan(&otp.UserID, &otp.CodeHash, &otp.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OTP{}, ErrOTPNotFound
	}
	return otp, err
}

// DeleteOTP removes the code for identifier, if any.
func (r *PostgresRepository) DeleteOTP(ctx context.Context, identifier string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM otp_codes WHERE identifier = $1`, identifier)
	return err
}
