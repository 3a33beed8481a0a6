//
//  internal/requestinfo/requestinfo.go
//
//  Per-request metadata for the redirect pipeline: the engine’s Request
//  boundary (method, host, URI, admin, authenticated, SSL), the client IP,
//  and a coarse user-agent classification.  These structs are inert.
//  They hold no pointers to handles or large buffers, so they are safe to
//  log or JSON-encode.
//

package requestinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/hostmap/internal/auth"
	"github.com/yanizio/hostmap/internal/redirect"
	"github.com/yanizio/hostmap/internal/ua"
)

// Options tells Parse how to read platform-specific signals.
type Options struct {
	// AdminPaths mark the administrative surface, e.g. "/wp-admin/".  A
	// request is administrative when any entry occurs in its path, so
	// tenant mount paths in front of it do not matter.
	AdminPaths []string

	// AuthCookiePrefix recognises the tenant application’s login cookie.
	AuthCookiePrefix string

	// TrustProxy honours X-Forwarded-Proto and X-Forwarded-For.
	TrustProxy bool
}

// RequestInfo is everything the pipeline learns about a request before
// resolution.
type RequestInfo struct {
	Request   redirect.Request `json:"request"`
	IP        net.IP           `json:"ip"`
	UA        ua.Info          `json:"ua"`
	Timestamp time.Time        `json:"timestamp"`
}

// Parse reads r according to opts.
func Parse(r *http.Request, opts Options) RequestInfo {
	agent := ua.Parse(r.UserAgent())

	return RequestInfo{
		Request: redirect.Request{
			Method:        r.Method,
			Host:          r.Host,
			URI:           r.URL.RequestURI(),
			Admin:         IsAdmin(r.URL.Path, opts.AdminPaths),
			Authenticated: auth.LoggedIn(r, opts.AuthCookiePrefix),
			SSL:           IsSSL(r, opts.TrustProxy),
			Bot:           agent.IsBot,
		},
		IP:        clientIP(r, opts.TrustProxy),
		UA:        agent,
		Timestamp: time.Now().UTC(),
	}
}

// IsAdmin reports whether path belongs to the administrative surface.
func IsAdmin(path string, adminPaths []string) bool {
	p := path + "/"
	for _, a := range adminPaths {
		if a != "" && strings.Contains(p, a) {
			return true
		}
	}
	return false
}

// IsSSL reports whether the visitor reached us over TLS, directly or via a
// trusted TLS-terminating proxy.
func IsSSL(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	if !trustProxy {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i != -1 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP when proxies are trusted, falling back to r.RemoteAddr.
func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip
				}
			}
		}
		if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
			if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(r.RemoteAddr)
}

/*──────────────────────────── context ──────────────────────────────────────*/

type ctxKey struct{} // unexported, collision-proof

// WithInfo stores info in ctx.
func WithInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the pointer previously stored by Enrich.  It returns
// nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}
