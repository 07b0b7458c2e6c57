package entity

import "time"

// Account is the full identity row.
type Account struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	DisplayName         *string    `db:"display_name"`
	PasswordHash        string     `db:"password_hash"`
	Disabled            bool       `db:"disabled"`
	LoginFailedAttempts int        `db:"login_failed_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// AccountView is the minimal projection handed to callers after
// authentication. It carries no credential material.
type AccountView struct {
	UID         string `json:"uid" db:"id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
}
