package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, display_name, credential, created_at, updated_at`

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  email CITEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  credential BYTEA,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Upsert creates the user on first authorization. On conflict the display
// name is refreshed when given and the credential replaced when non-nil.
func (r *UserRepo) Upsert(ctx context.Context, email, displayName string, sealed []byte) (*entity.User, error) {
	const q = `INSERT INTO users (email, display_name, credential) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			credential = COALESCE(EXCLUDED.credential, users.credential),
			updated_at = NOW()
		RETURNING ` + userColumns
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email, displayName, nullBytes(sealed)); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user matched by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateCredential stores a freshly issued sealed credential.
func (r *UserRepo) UpdateCredential(ctx context.Context, id int64, sealed []byte) error {
	const q = `UPDATE users SET credential=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, sealed)
	return err
}

// nullBytes maps an empty credential to SQL NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
