// internal/redirect/engine.go
//
// Redirect decision engine.
//
// Context
// -------
// Every request on a tenant passes through three stages in fixed order.
// The first stage that produces a redirect wins; if none does, the request
// is served with its tenant.Context.
//
//	A  original-domain escape   admin surface on a rewritten request goes
//	                            back to the tenant’s true domain + path
//	B  primary enforcement      Redirect-type (or unmapped) hosts go to the
//	                            tenant’s primary domain
//	C  www canonicalisation     a resolved host that breaks its www rule
//	                            goes to the corrected fullname
//
// Loop guard
// ----------
// Each candidate target is compared byte-for-byte with the current URL
// (scheme + host + URI).  An identical target is dropped silently and the
// next stage runs.
//
// Notes
// -----
//   - Only GET and HEAD are ever redirected.
//   - One status code for every kind: 301 when the tenant’s policy asks
//     for permanent redirects, otherwise 302.
//   - A failed primary lookup serves the request as-is.
package redirect

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/metrics"
	"github.com/yanizio/hostmap/internal/routing"
	"github.com/yanizio/hostmap/internal/tenant"
)

// Kind is the outcome of Decide.
type Kind uint8

const (
	Serve Kind = iota
	ToOriginal
	ToPrimary
	ToWWW
)

func (k Kind) String() string {
	switch k {
	case ToOriginal:
		return "to_original"
	case ToPrimary:
		return "to_primary"
	case ToWWW:
		return "to_www"
	default:
		return "serve"
	}
}

// MarshalText renders Kind as its string form in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Request is the slice of the inbound HTTP request the engine looks at.
type Request struct {
	Method        string `json:"method"`
	Host          string `json:"host"`
	URI           string `json:"uri"` // path plus optional ?query
	Admin         bool   `json:"admin"`
	Authenticated bool   `json:"authenticated"`
	SSL           bool   `json:"ssl"`
	Bot           bool   `json:"bot"`
}

// Scheme returns "https://" or "http://".
func (r Request) Scheme() string {
	if r.SSL {
		return "https://"
	}
	return "http://"
}

// URL is the request’s own absolute URL as the loop guard sees it.
func (r Request) URL() string {
	uri := r.URI
	if uri == "" {
		uri = "/"
	}
	return r.Scheme() + tenant.NormalizeHost(r.Host) + uri
}

func (r Request) safe() bool {
	m := strings.ToUpper(r.Method)
	return m == http.MethodGet || m == http.MethodHead || m == ""
}

// Decision is the engine’s answer.  Status and Target are set only when
// Kind != Serve.
type Decision struct {
	Kind    Kind           `json:"kind"`
	Status  int            `json:"status,omitempty"`
	Target  string         `json:"target,omitempty"`
	Context tenant.Context `json:"context"`
}

// Redirect reports whether d asks for a redirect.
func (d Decision) Redirect() bool { return d.Kind != Serve }

// PrimaryLookup returns a tenant’s primary domain.  *registry.Registry
// satisfies it.
type PrimaryLookup interface {
	Primary(ctx context.Context, tenantID uint64) (domain.Record, bool, error)
}

// Engine is stateless apart from its collaborators and safe for
// concurrent use.
type Engine struct {
	primaries PrimaryLookup
	log       *zap.Logger
}

// NewEngine returns an Engine backed by primaries.
func NewEngine(primaries PrimaryLookup, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{primaries: primaries, log: log}
}

// Decide runs stages A, B, and C for one request.  All three stages act on
// safe requests only (GET, HEAD, or an empty method): Stage C included, so
// a POST to a mismatched www variant is served rather than redirected and
// its body is never dropped by a 301/302.
func (e *Engine) Decide(ctx context.Context, req Request, tc tenant.Context) Decision {
	d := e.decide(ctx, req, tc)
	d.Context = tc
	metrics.DecisionsTotal.WithLabelValues(
		d.Kind.String(), strconv.Itoa(d.Status), strconv.FormatBool(req.Bot)).Inc()
	return d
}

func (e *Engine) decide(ctx context.Context, req Request, tc tenant.Context) Decision {
	var (
		host        = tenant.NormalizeHost(req.Host)
		current     = req.URL()
		scheme      = req.Scheme()
		path, query = routing.SplitURI(req.URI)
		status      = tc.Flags.Status()
		flags       = tc.Flags
	)

	// Stage A: keep the administrative surface on the original domain.
	if req.Admin && !flags.RedirectBackend && req.safe() && tc.Rewritten && tc.TrueDomain != "" {
		target := scheme + tc.TrueDomain + routing.JoinPath(tc.TruePath, path)
		target = routing.WithQuery(target, query)
		if target != current {
			return Decision{Kind: ToOriginal, Status: status, Target: target}
		}
	}

	if !req.safe() {
		return Decision{Kind: Serve}
	}

	// Stage B: funnel Redirect-type and unmapped hosts to the primary.
	if e.primaryApplies(req, tc) {
		prim, ok, err := e.primaries.Primary(ctx, tc.TenantID)
		switch {
		case err != nil:
			e.log.Warn("primary lookup failed, serving as-is",
				zap.Uint64("tenant_id", tc.TenantID), zap.Error(err))
		case ok:
			full := prim.Fullname(flags.UseWWW)
			if full != host {
				target := scheme + full + routing.StripMount(path, tc.TruePath)
				target = routing.WithQuery(target, query)
				if target != current {
					return Decision{Kind: ToPrimary, Status: status, Target: target}
				}
			}
		}
	}

	// Stage C: www canonicalisation of the matched record.
	if tc.Resolved() && !tc.Domain.MatchesHost(host) {
		uri := req.URI
		if uri == "" {
			uri = "/"
		}
		target := scheme + tc.Domain.Fullname(flags.UseWWW) + uri
		if target != current {
			return Decision{Kind: ToWWW, Status: status, Target: target}
		}
	}

	return Decision{Kind: Serve}
}

func (e *Engine) primaryApplies(req Request, tc tenant.Context) bool {
	switch {
	case tc.TenantID == 0:
		return false
	case req.Admin && !tc.Flags.RedirectBackend:
		return false
	case !req.Admin && req.Authenticated && tc.Flags.NoRedirectUsers:
		return false
	case tc.Resolved() && tc.Domain.Type != domain.Redirect:
		return false
	}
	return true
}
