package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestCountActiveSites(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM site`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := CountActiveSites(context.Background(), db)
	if err != nil || n != 3 {
		t.Fatalf("CountActiveSites = %d %v", n, err)
	}
}

func TestOpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := OpenWithOptions(ctx, "u:p@tcp(127.0.0.1:1)/x?timeout=100ms", Options{
		PingAttempts: 2,
		PingBackoff:  10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected ping failure")
	}
}
