// internal/requestinfo/middleware.go
//
// HTTP middleware that attaches *RequestInfo to each request.
//
/*
Context
--------
This handler sits high in the chain, before domain resolution.  For every
request it parses the request boundary once and stores the result under an
unexported context key, so the domain middleware, the API, and access logs
share one parse.

Instrumentation
---------------
At debug level each invocation logs host, URI, client IP, device class,
bot flag, and the admin / authenticated / SSL flags.
*/
package requestinfo

import (
	"net/http"

	"go.uber.org/zap"
)

// Enrich returns middleware that attaches *RequestInfo and forwards.
func Enrich(opts Options, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := Parse(r, opts)

			if ce := log.Check(zap.DebugLevel, "request info"); ce != nil {
				ce.Write(
					zap.String("host", info.Request.Host),
					zap.String("uri", info.Request.URI),
					zap.Stringer("ip", info.IP),
					zap.String("device", info.UA.Device),
					zap.Bool("bot", info.Request.Bot),
					zap.Bool("admin", info.Request.Admin),
					zap.Bool("authenticated", info.Request.Authenticated),
					zap.Bool("ssl", info.Request.SSL),
				)
			}

			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), &info)))
		})
	}
}
