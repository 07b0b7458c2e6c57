package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
)

func newMockRepo(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestEnsureTable(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS identity_accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := r.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCreate(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO identity_accounts").
		WithArgs("a-1", "ana@b.co", nil, "hash", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Create(context.Background(), &entity.Account{
		ID:           "a-1",
		Email:        "ana@b.co",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestGetByEmail(t *testing.T) {
	r, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "password_hash", "disabled",
		"login_failed_attempts", "locked_until", "last_login_at", "created_at", "updated_at",
	}).AddRow("a-1", "ana@b.co", "Ana", "hash", false, 0, nil, nil, now, now)
	mock.ExpectQuery("FROM identity_accounts WHERE email=\\$1").
		WithArgs("ana@b.co").
		WillReturnRows(rows)

	got, err := r.GetByEmail(context.Background(), "ana@b.co")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if got.ID != "a-1" || got.DisplayName == nil || *got.DisplayName != "Ana" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestGetByEmailNotFound(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery("FROM identity_accounts WHERE email=\\$1").
		WithArgs("missing@b.co").
		WillReturnError(sql.ErrNoRows)

	if _, err := r.GetByEmail(context.Background(), "missing@b.co"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestIncrementFailedLogin(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery("login_failed_attempts = login_failed_attempts \\+ 1").
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"login_failed_attempts"}).AddRow(3))

	n, err := r.IncrementFailedLogin(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("IncrementFailedLogin() error: %v", err)
	}
	if n != 3 {
		t.Fatalf("IncrementFailedLogin() = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLockIfThresholdBelowThreshold(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery("SET locked_until").
		WithArgs("a-1", 15, 6).
		WillReturnError(sql.ErrNoRows)

	locked, err := r.LockIfThreshold(context.Background(), "a-1", 6, 15)
	if err != nil {
		t.Fatalf("LockIfThreshold() error: %v", err)
	}
	if locked {
		t.Fatal("expected no lock below threshold")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestGetView(t *testing.T) {
	r, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "email", "display_name"}).
		AddRow("a-1", "ana@b.co", "Ana")
	mock.ExpectQuery("SELECT id, email, COALESCE\\(display_name,''\\) AS display_name FROM identity_accounts WHERE id=\\$1").
		WithArgs("a-1").
		WillReturnRows(rows)

	v, err := r.GetView(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetView() error: %v", err)
	}
	if v.UID != "a-1" || v.DisplayName != "Ana" {
		t.Fatalf("unexpected view: %+v", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
