package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/gatehouse/internal/user/entity"
)

// ErrDuplicate reports a unique-key collision on email or national-id.
var ErrDuplicate = errors.New("user already exists")

// UserRepo provides data access for the users table using sqlx. Lookups
// surface sql.ErrNoRows for missing rows; the service layer decides whether
// absence is an error.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  email CITEXT UNIQUE,
  national_id VARCHAR(11) UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_national_id ON users(national_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Optional unique columns are stored as NULL rather than '' so that absent
// values never collide on the unique index; reads fold them back to ''.
const userColumns = `id, name, COALESCE(email, '') AS email, COALESCE(national_id, '') AS national_id, password_hash, created_at, updated_at`

// Create inserts a new row with the caller-assigned ID and scans back the
// database-assigned timestamps.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, name, email, national_id, password_hash)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, q, u.ID, u.Name, u.Email, u.NationalID, u.PasswordHash)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return translate(err)
	}
	return nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.get(ctx, q, id)
}

// GetByEmail matches case-insensitively thanks to citext.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.get(ctx, q, email)
}

// GetByNationalID fetches by the fixed 11-character code.
func (r *UserRepo) GetByNationalID(ctx context.Context, nationalID string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE national_id=$1`
	return r.get(ctx, q, nationalID)
}

// GetByName fetches by display name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE name=$1`
	return r.get(ctx, q, name)
}

func (r *UserRepo) get(ctx context.Context, q string, arg any) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		return nil, err
	}
	return &u, nil
}

// Save persists the mutable fields of an already-loaded user and refreshes
// updated_at.
func (r *UserRepo) Save(ctx context.Context, u *entity.User) error {
	const q = `UPDATE users
		SET name=$2, email=NULLIF($3, ''), national_id=NULLIF($4, ''), password_hash=$5, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at`
	row := r.db.QueryRowxContext(ctx, q, u.ID, u.Name, u.Email, u.NationalID, u.PasswordHash)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
