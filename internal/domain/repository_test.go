// internal/domain/repository_test.go
//
// Unit-tests for the domain repository using sqlmock.
//
// Run: go test ./internal/domain -v

package domain

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var cols = []string{"id", "name", "site_id", "type", "www", "active"}

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestFindByName(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM   domain
        WHERE  name = ?`)).
		WithArgs("example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, "example.com", 3, "alias", "always", true))

	rec, err := repo.FindByName(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("FindByName error: %v", err)
	}
	if rec == nil || rec.ID != 7 || rec.TenantID != 3 || rec.Type != Alias || rec.WWW != WWWAlways {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFindByID_NoRows(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE  id = ?`)).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(cols))

	rec, err := repo.FindByID(context.Background(), 99)
	if err != nil || rec != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", rec, err)
	}
}

func TestFindByName_Error(t *testing.T) {
	repo, mock := newMock(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE  name = ?`)).
		WithArgs("down.com").
		WillReturnError(boom)

	if _, err := repo.FindByName(context.Background(), "down.com"); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
}

func TestFindPrimaries(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`AND  type = 'primary'`)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(4, "a.com", 3, "primary", "auto", true).
			AddRow(9, "b.com", 3, "primary", "never", true))

	rows, err := repo.FindPrimaries(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindPrimaries error: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 4 || rows[1].WWW != WWWNever {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
