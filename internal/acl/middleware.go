// internal/acl/middleware.go
//
// Chi middleware that enforces token RBAC on the API.
//
//	r.Use(acl.Authenticate(db, log))
//	r.With(acl.RequireRole(acl.RoleOperator)).Post("/evict", …)

package acl

import (
	"context"
	"database/sql"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/auth"
)

type rolesKey struct{}

// Roles returns the roles Authenticate attached to ctx.
func Roles(ctx context.Context) []string {
	r, _ := ctx.Value(rolesKey{}).([]string)
	return r
}

// Authenticate resolves the bearer token on every request.  Requests
// without a valid token get 401; store failures get 503.
func Authenticate(db *sql.DB, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hostmap"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			id, roles, err := TokenRoles(r.Context(), db, HashToken(token))
			if err != nil {
				log.Error("acl token roles", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			if id == 0 || len(roles) == 0 {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := auth.WithUser(r.Context(), id)
			ctx = context.WithValue(ctx, rolesKey{}, roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole ensures the caller holds ANY of the supplied roles.
func RequireRole(names ...string) func(http.Handler) http.Handler {
	if len(names) == 0 {
		panic("acl.RequireRole: at least one role name must be supplied")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserID(r.Context()); !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, have := range Roles(r.Context()) {
				if slices.Contains(names, have) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
