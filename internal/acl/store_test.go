// internal/acl/store_test.go
//
// Unit-tests for acl helpers using sqlmock.
//
// Run: go test ./internal/acl -v

package acl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

const tokenQuery = `SELECT t.id, tr.role FROM api_token t JOIN api_token_role tr ON tr.token_id = t.id WHERE t.token_hash = ? AND t.enabled = TRUE`

func TestHashToken(t *testing.T) {
	// echo -n secret | sha256sum
	const want = "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if got := HashToken("secret"); got != want {
		t.Fatalf("HashToken = %s", got)
	}
}

func TestTokenRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(tokenQuery)).
		WithArgs(HashToken("secret")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).
			AddRow(int64(9), RoleReader).
			AddRow(int64(9), RoleOperator))

	id, got, err := TokenRoles(context.Background(), db, HashToken("secret"))
	if err != nil {
		t.Fatalf("TokenRoles error: %v", err)
	}
	if id != 9 || len(got) != 2 || got[0] != RoleReader || got[1] != RoleOperator {
		t.Fatalf("unexpected result: %d %#v", id, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func guarded(t *testing.T, setup func(sqlmock.Sqlmock), header string, roles ...string) int {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	if setup != nil {
		setup(mock)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	var h http.Handler = ok
	if len(roles) > 0 {
		h = RequireRole(roles...)(h)
	}
	h = Authenticate(db, nil)(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/resolve", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
	return rr.Code
}

func TestAuthenticate(t *testing.T) {
	reader := func(m sqlmock.Sqlmock) {
		m.ExpectQuery(regexp.QuoteMeta(tokenQuery)).
			WithArgs(HashToken("tok")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).AddRow(int64(1), RoleReader))
	}
	unknown := func(m sqlmock.Sqlmock) {
		m.ExpectQuery(regexp.QuoteMeta(tokenQuery)).
			WithArgs(HashToken("nope")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "role"}))
	}
	broken := func(m sqlmock.Sqlmock) {
		m.ExpectQuery(regexp.QuoteMeta(tokenQuery)).
			WithArgs(HashToken("tok")).
			WillReturnError(errors.New("connection refused"))
	}

	cases := []struct {
		name   string
		setup  func(sqlmock.Sqlmock)
		header string
		roles  []string
		want   int
	}{
		{"no header", nil, "", nil, http.StatusUnauthorized},
		{"wrong scheme", nil, "Basic dG9rOg==", nil, http.StatusUnauthorized},
		{"unknown token", unknown, "Bearer nope", nil, http.StatusUnauthorized},
		{"store down", broken, "Bearer tok", nil, http.StatusServiceUnavailable},
		{"reader ok", reader, "Bearer tok", nil, http.StatusOK},
		{"reader has role", reader, "bearer tok", []string{RoleReader}, http.StatusOK},
		{"reader lacks operator", reader, "Bearer tok", []string{RoleOperator}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := guarded(t, c.setup, c.header, c.roles...); got != c.want {
				t.Fatalf("status = %d, want %d", got, c.want)
			}
		})
	}
}
