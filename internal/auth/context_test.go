package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggedIn(t *testing.T) {
	const prefix = "wordpress_logged_in_"

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if LoggedIn(r, prefix) {
		t.Fatal("anonymous request reported logged in")
	}

	r.AddCookie(&http.Cookie{Name: prefix + "abc123", Value: "jane|1700000000|x"})
	if !LoggedIn(r, prefix) {
		t.Fatal("login cookie not recognised")
	}
	if LoggedIn(r, "") {
		t.Fatal("cookie detection ran with empty prefix")
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithUser(r.Context(), 42))
	if !LoggedIn(r, "") {
		t.Fatal("context user not recognised")
	}
	if id, ok := UserID(r.Context()); !ok || id != 42 {
		t.Fatalf("UserID = %d %v", id, ok)
	}
}
