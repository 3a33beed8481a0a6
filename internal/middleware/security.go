// internal/middleware/security.go
//
// Security-header middleware.
//
// Sets defensive headers on every API response:
//
//   • Content-Security-Policy  nothing may load; the API serves JSON only
//   • X-Frame-Options          click-jacking defence
//   • X-Content-Type-Options   MIME-sniffing defence
//   • Referrer-Policy          no Referer at all
//   • Cache-Control            decisions depend on live cache state
//
// Notes
// -----
// • Headers are set before next.ServeHTTP; once a handler writes, later
//   header changes are lost.  Handlers may still override any of them.
// • Mounted on the JSON API only.  Tenant pages carry whatever headers the
//   tenant application chooses, and HSTS would pin every alias domain.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		csp   = "default-src 'none'; frame-ancestors 'none'"
		xfo   = "DENY"
		nosn  = "nosniff"
		refer = "no-referrer"
		cache = "no-store"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Frame-Options", xfo)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Referrer-Policy", refer)
		h.Set("Cache-Control", cache)

		next.ServeHTTP(w, r)
	})
}
