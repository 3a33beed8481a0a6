// internal/middleware/domains.go
//
// Domain pipeline: resolve → decide → (redirect | serve + rewrite).
//
// Workflow
// --------
//  1. Take *RequestInfo from requestinfo.Enrich, or parse it here when the
//     enrich middleware is not mounted.
//  2. Bind the host and path to a tenant.Context (resolver.Bind never
//     fails; unmapped hosts get a fallback or an empty context).
//  3. Run the redirect engine.  A redirect that Emit manages to write ends
//     the request.  The writer is a chi WrapResponseWriter (reused when an
//     outer layer already wrapped it) so Emit can tell a started response.
//  4. Otherwise attach the tenant.Context and serve through
//     rewrite.Middleware so absolute links follow the public domain.
package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/redirect"
	"github.com/yanizio/hostmap/internal/requestinfo"
	"github.com/yanizio/hostmap/internal/rewrite"
	"github.com/yanizio/hostmap/internal/tenant"
)

// Binder maps a host and path to a tenant.  *resolver.Resolver satisfies it.
type Binder interface {
	Bind(ctx context.Context, host, path string) (tenant.Context, bool)
}

// Decider is the redirect engine.  *redirect.Engine satisfies it.
type Decider interface {
	Decide(ctx context.Context, req redirect.Request, tc tenant.Context) redirect.Decision
}

// Domains returns the domain-pipeline middleware.
func Domains(b Binder, d Decider, opts requestinfo.Options, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		serve := rewrite.Middleware(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww, ok := w.(chimw.WrapResponseWriter)
			if !ok {
				ww = chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			}

			ctx := r.Context()
			info := requestinfo.FromContext(ctx)
			if info == nil {
				parsed := requestinfo.Parse(r, opts)
				info = &parsed
			}

			tc, _ := b.Bind(ctx, info.Request.Host, r.URL.Path)
			dec := d.Decide(ctx, info.Request, tc)

			if redirect.Emit(ww, r, dec) {
				log.Debug("domain redirect",
					zap.String("kind", dec.Kind.String()),
					zap.Int("status", dec.Status),
					zap.String("from", info.Request.URL()),
					zap.String("to", dec.Target),
					zap.Uint64("tenant_id", tc.TenantID))
				return
			}

			serve.ServeHTTP(ww, r.WithContext(tenant.WithContext(ctx, tc)))
		})
	}
}
