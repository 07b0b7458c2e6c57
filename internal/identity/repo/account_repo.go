package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
)

// AccountRepo provides data access for the identity accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts table if not exists (idempotent).
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS identity_accounts (
  id varchar(32) PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT,
  password_hash TEXT NOT NULL,
  disabled BOOLEAN NOT NULL DEFAULT false,
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_identity_accounts_email ON identity_accounts(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row. Email must already be normalized.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO identity_accounts (id,email,display_name,password_hash,disabled)
	  VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Disabled)
	return err
}

// GetByEmail returns an account matched by email or sql.ErrNoRows.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	const q = `SELECT id, email, display_name, password_hash, disabled,
	    login_failed_attempts, locked_until, last_login_at, created_at, updated_at
	  FROM identity_accounts WHERE email=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetView returns the minimal authenticated projection for an account ID.
func (r *AccountRepo) GetView(ctx context.Context, id string) (*entity.AccountView, error) {
	const q = `SELECT id, email, COALESCE(display_name,'') AS display_name FROM identity_accounts WHERE id=$1`
	var v entity.AccountView
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateDisplayName sets the display name for an account.
func (r *AccountRepo) UpdateDisplayName(ctx context.Context, id, name string) error {
	const q = `UPDATE identity_accounts SET display_name=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, name)
	return err
}

// IncrementFailedLogin increments the failure counter atomically and returns the new value.
func (r *AccountRepo) IncrementFailedLogin(ctx context.Context, id string) (int, error) {
	const q = `UPDATE identity_accounts SET login_failed_attempts = login_failed_attempts + 1, updated_at=NOW()
	  WHERE id=$1 RETURNING login_failed_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold sets locked_until when the failure counter reached the threshold.
func (r *AccountRepo) LockIfThreshold(ctx context.Context, id string, threshold, lockMinutes int) (bool, error) {
	const q = `UPDATE identity_accounts SET locked_until = NOW() + ($2 || ' minutes')::interval, updated_at=NOW()
	  WHERE id=$1 AND locked_until IS NULL AND login_failed_attempts >= $3 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, lockMinutes, threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UnlockIfExpired clears the lock once locked_until has passed.
func (r *AccountRepo) UnlockIfExpired(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE identity_accounts SET locked_until=NULL, login_failed_attempts=0, updated_at=NOW()
	  WHERE id=$1 AND locked_until IS NOT NULL AND locked_until < NOW() RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetLoginSuccess resets failure metrics on successful authentication.
func (r *AccountRepo) ResetLoginSuccess(ctx context.Context, id string) error {
	const q = `UPDATE identity_accounts SET login_failed_attempts=0, locked_until=NULL, last_login_at=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
