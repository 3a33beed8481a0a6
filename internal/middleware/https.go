package middleware

import (
	"net/http"

	"github.com/yanizio/hostmap/internal/requestinfo"
	"github.com/yanizio/hostmap/internal/tenant"
)

// ForceHTTPS returns middleware that upgrades plain-HTTP requests.  If the
// request is plain HTTP, the host is not “localhost”, and b knows the host,
// it issues a 308 Permanent Redirect to the HTTPS version of the same URL.
// Otherwise it calls the next handler unchanged.
func ForceHTTPS(b Binder, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := tenant.NormalizeHost(r.Host)

			// Already HTTPS or dev host → continue.
			if requestinfo.IsSSL(r, trustProxy) || host == "localhost" {
				next.ServeHTTP(w, r)
				return
			}

			// Only redirect hosts that belong to a tenant.
			if _, ok := b.Bind(r.Context(), host, r.URL.Path); ok {
				target := "https://" + host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusPermanentRedirect)
				return
			}

			// Unknown host → keep normal flow (likely 404 later).
			next.ServeHTTP(w, r)
		})
	}
}
