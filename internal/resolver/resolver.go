// internal/resolver/resolver.go
//
// Host → tenant resolution.
//
// Context
// -------
// `Resolve` answers “which tenant owns this Host header?” through the
// domain registry:
//
//  1. Normalise the host (lowercase, drop :port and trailing dot).
//  2. Strip leading “www.” to get the lookup key, so www.example.com and
//     example.com both find the record stored as example.com.
//  3. Registry lookup by name.  Absent → ErrNotFound.
//  4. Fetch the tenant’s own binding from the site directory and build an
//     immutable tenant.Context.
//
// `Bind` wraps Resolve for the request pipeline.  When no record matches,
// or the store is unavailable, it falls back to the binding the platform
// already has for the host (site.Directory.Locate) so traffic keeps
// flowing un-rewritten.
//
// Notes
// -----
//   - Store failures fail open.  They are logged and counted, never
//     surfaced to the visitor.
//   - “localhost” can be pointed at a real domain record for development
//     via Options.LocalhostAlias.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/metrics"
	"github.com/yanizio/hostmap/internal/policy"
	"github.com/yanizio/hostmap/internal/routing"
	"github.com/yanizio/hostmap/internal/site"
	"github.com/yanizio/hostmap/internal/tenant"
)

// ErrNotFound means no active domain record (or no live tenant behind it)
// matches the host.  It is a normal outcome, not a failure.
var ErrNotFound = errors.New("resolver: host not found")

// Domains is the registry read API the resolver needs.
type Domains interface {
	ByName(ctx context.Context, name string) (domain.Record, bool, error)
}

// Tenants is the directory read API the resolver needs.
type Tenants interface {
	Tenant(ctx context.Context, id uint64) (site.Binding, bool, error)
	Locate(ctx context.Context, host, path string) (site.Binding, bool, error)
}

// Options configures a Resolver.
type Options struct {
	Defaults       policy.Flags // platform-wide policy before site overrides
	LocalhostAlias string       // domain name looked up for Host “localhost”
	Logger         *zap.Logger
}

// Resolver is safe for concurrent use.
type Resolver struct {
	domains Domains
	tenants Tenants
	opts    Options
	log     *zap.Logger
}

// New wires a Resolver.
func New(domains Domains, tenants Tenants, opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{domains: domains, tenants: tenants, opts: opts, log: log}
}

// Defaults returns the platform-wide policy flags.
func (r *Resolver) Defaults() policy.Flags { return r.opts.Defaults }

// Resolve maps host to the tenant that owns it.  path is the request path
// and is carried on the Context for diagnostics.
func (r *Resolver) Resolve(ctx context.Context, host, path string) (tenant.Context, error) {
	host = tenant.NormalizeHost(host)
	if path == "" {
		path = "/"
	}

	lookup := host
	if host == "localhost" && r.opts.LocalhostAlias != "" {
		lookup = r.opts.LocalhostAlias
	}
	find := domain.Sanitize(lookup)

	rec, ok, err := r.domains.ByName(ctx, find)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return tenant.Context{}, fmt.Errorf("resolve %q: %w", host, err)
	}
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("not_found").Inc()
		return tenant.Context{}, ErrNotFound
	}

	b, ok, err := r.tenants.Tenant(ctx, rec.TenantID)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return tenant.Context{}, fmt.Errorf("resolve %q: tenant %d: %w", host, rec.TenantID, err)
	}
	if !ok {
		r.log.Warn("domain points at missing tenant",
			zap.String("domain", rec.Name),
			zap.Uint64("domain_id", rec.ID),
			zap.Uint64("tenant_id", rec.TenantID))
		metrics.ResolutionsTotal.WithLabelValues("not_found").Inc()
		return tenant.Context{}, ErrNotFound
	}

	metrics.ResolutionsTotal.WithLabelValues("matched").Inc()
	return tenant.Context{
		TenantID:         b.ID,
		NetworkID:        b.NetworkID,
		RequestedHost:    host,
		RequestedPath:    path,
		TrueDomain:       b.Domain,
		TruePath:         b.Path,
		ResolvedDomainID: rec.ID,
		Domain:           rec,
		Flags:            r.opts.Defaults.Override(b.Config),
		Rewritten:        host != b.Domain || routing.TrailingSlash(b.Path) != "/",
	}, nil
}

// Bind always returns a usable Context.  ok is false when neither a domain
// record nor a platform binding exists for host; the Context then carries
// only the request identity and default flags.
func (r *Resolver) Bind(ctx context.Context, host, path string) (tenant.Context, bool) {
	tc, err := r.Resolve(ctx, host, path)
	switch {
	case err == nil:
		return tc, true
	case !errors.Is(err, ErrNotFound):
		r.log.Warn("domain resolution failed, serving unmapped",
			zap.String("host", host), zap.Error(err))
	}

	host = tenant.NormalizeHost(host)
	if path == "" {
		path = "/"
	}
	unmapped := tenant.Context{
		RequestedHost: host,
		RequestedPath: path,
		Flags:         r.opts.Defaults,
	}

	b, ok, err := r.tenants.Locate(ctx, host, path)
	if err != nil {
		r.log.Warn("site lookup failed", zap.String("host", host), zap.Error(err))
		return unmapped, false
	}
	if !ok {
		return unmapped, false
	}

	metrics.ResolutionsTotal.WithLabelValues("fallback").Inc()
	unmapped.TenantID = b.ID
	unmapped.NetworkID = b.NetworkID
	unmapped.TrueDomain = b.Domain
	unmapped.TruePath = b.Path
	unmapped.Flags = r.opts.Defaults.Override(b.Config)
	return unmapped, true
}
