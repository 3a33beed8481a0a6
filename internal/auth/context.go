// internal/auth/context.go
//
// “Is this visitor logged in?” for the redirect engine.
//
// Context
// -------
// The engine only needs a yes/no answer.  Two sources count:
//
//   - a user ID placed on the request context by an upstream login layer
//     (`WithUser`), and
//   - a login cookie set by the tenant application itself, recognised by
//     name prefix (e.g. “wordpress_logged_in_”).  The cookie is not
//     validated here; a forged cookie only skips a cosmetic redirect.
//
// Usage
// -----
//
//	ctx = auth.WithUser(ctx, 123)
//	id, ok := auth.UserID(ctx)             // 123, true
//	auth.LoggedIn(r, "wordpress_logged_in_") // true when either source says so
package auth

import (
	"context"
	"net/http"
	"strings"
)

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying the given userID.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID extracts the userID from ctx.  It returns (0, false) if no user is
// set or if the stored value is not an int64.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// LoggedIn reports whether r belongs to an authenticated visitor.  An
// empty cookiePrefix disables cookie detection.
func LoggedIn(r *http.Request, cookiePrefix string) bool {
	if id, ok := UserID(r.Context()); ok && id > 0 {
		return true
	}
	if cookiePrefix == "" {
		return false
	}
	for _, c := range r.Cookies() {
		if strings.HasPrefix(c.Name, cookiePrefix) && c.Value != "" {
			return true
		}
	}
	return false
}
