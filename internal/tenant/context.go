// internal/tenant/context.go
//
// Tenant request context.
//
// Context
// -------
// One value per request, built by the resolver and handed down the
// pipeline through context.Context.  It carries two identities:
//
//   - the *true* binding (TrueDomain, TruePath): where the platform itself
//     mounts the tenant, e.g. network.example + /blog/.
//   - the *public* identity: the host the visitor actually asked for,
//     possibly an alias domain served at the root.
//
// Rewriting and the administrative escape hatch both compare the two.
//
// Notes
// -----
//   - Context is a value type.  A tenant switch builds a new one; nothing
//     mutates a Context after the resolver returns it.
//   - ResolvedDomainID == 0 means no domain record matched.
package tenant

import (
	"context"
	"strings"

	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/policy"
)

// Context is the per-request tenant identity.
type Context struct {
	TenantID      uint64 `json:"tenant_id"`
	NetworkID     uint64 `json:"network_id"`
	RequestedHost string `json:"requested_host"`
	RequestedPath string `json:"requested_path"`

	TrueDomain string `json:"true_domain"`
	TruePath   string `json:"true_path"`

	ResolvedDomainID uint64        `json:"resolved_domain_id,omitempty"`
	Domain           domain.Record `json:"domain"`

	Flags     policy.Flags `json:"flags"`
	Rewritten bool         `json:"rewritten"`
}

// Resolved reports whether a domain record matched this request.
func (c Context) Resolved() bool { return c.ResolvedDomainID != 0 }

// TrueURL is the tenant’s own domain and mount path without surrounding
// slashes, e.g. "network.example/blog".
func (c Context) TrueURL() string {
	return strings.Trim(c.TrueDomain+c.TruePath, "/")
}

// PublicURL is what TrueURL is rewritten to on a resolved request.
// Mapped domains always serve the tenant at the root.
func (c Context) PublicURL() string {
	return strings.Trim(c.RequestedHost, "/")
}

type ctxKey struct{}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the tenant Context stored in ctx, if any.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}
