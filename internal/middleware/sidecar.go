package middleware

import (
	"net/http"
	"strconv"

	"github.com/yanizio/hostmap/internal/rewrite"
	"github.com/yanizio/hostmap/internal/tenant"
)

// Headers the sidecar reports to the platform's front proxy.
const (
	HeaderTenant     = "X-Hostmap-Tenant"
	HeaderNetwork    = "X-Hostmap-Network"
	HeaderTrueDomain = "X-Hostmap-True-Domain"
	HeaderTruePath   = "X-Hostmap-True-Path"
	HeaderRewritten  = "X-Hostmap-Rewritten"

	// Set only when the front proxy must rewrite the upstream response.
	HeaderRewriteFrom = "X-Hostmap-Rewrite-From"
	HeaderRewriteTo   = "X-Hostmap-Rewrite-To"
)

// Sidecar is the terminal handler behind Domains.  A served request that
// bound to a tenant gets 204 plus the tenant facts as headers; anything
// else gets 404.  When the tenant is served under a mapped domain the
// Rewriter pair is reported too, so the proxy can apply it to the
// upstream body (protocol-relative links only) and Location header.
func Sidecar() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := tenant.FromContext(r.Context())
		if !ok || tc.TenantID == 0 {
			http.NotFound(w, r)
			return
		}
		h := w.Header()
		h.Set(HeaderTenant, strconv.FormatUint(tc.TenantID, 10))
		h.Set(HeaderNetwork, strconv.FormatUint(tc.NetworkID, 10))
		h.Set(HeaderTrueDomain, tc.TrueDomain)
		h.Set(HeaderTruePath, tc.TruePath)
		h.Set(HeaderRewritten, strconv.FormatBool(tc.Rewritten))
		if rw, ok := rewrite.For(tc); ok {
			h.Set(HeaderRewriteFrom, rw.From)
			h.Set(HeaderRewriteTo, rw.To)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
