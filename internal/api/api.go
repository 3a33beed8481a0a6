// internal/api/api.go
//
// JSON surface of the decision service.
//
// Routes (mounted under /v1 by cmd/web)
// -------------------------------------
//
//	GET  /resolve?host=&path=                          → resolver result
//	GET  /decide?host=&uri=&method=&admin=&auth=&ssl=  → redirect decision
//	POST /rewrite {"host":…, "path":…, "url":…, …}     → apply the tenant Rewriter
//	POST /evict   {"name":…, "id":…, "tenant_id":…, "domain":…} → drop cache entries
//	GET  /debug                                        → echo request info
//
// Notes
// -----
//   - /resolve reports store failures as 503 so operators see them; the
//     request pipeline itself fails open.
//   - Guard attaches token RBAC (internal/acl); cmd/web enables it unless
//     api.require_token is off.
//   - /evict is the write-side hook for whatever edits the domain table.
//     Every field is optional; present fields are evicted independently.
//   - /rewrite lets a renderer that is not behind the sidecar pipeline
//     apply the same link rewriting to URLs, HTML, and upload dirs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/redirect"
	"github.com/yanizio/hostmap/internal/requestinfo"
	"github.com/yanizio/hostmap/internal/resolver"
	"github.com/yanizio/hostmap/internal/rewrite"
	"github.com/yanizio/hostmap/internal/routing"
	"github.com/yanizio/hostmap/internal/tenant"
)

// Resolver is the subset of *resolver.Resolver the API calls.
type Resolver interface {
	Resolve(ctx context.Context, host, path string) (tenant.Context, error)
	Bind(ctx context.Context, host, path string) (tenant.Context, bool)
}

// Decider is the redirect engine.
type Decider interface {
	Decide(ctx context.Context, req redirect.Request, tc tenant.Context) redirect.Decision
}

// Evicter drops domain registry entries.  *registry.Registry satisfies it.
type Evicter interface {
	EvictName(ctx context.Context, name string)
	EvictID(ctx context.Context, id uint64)
	EvictPrimary(ctx context.Context, tenantID uint64)
}

// TenantEvicter drops site directory entries.  *site.Directory satisfies it.
type TenantEvicter interface {
	Evict(id uint64, domain string)
}

// Handler serves the API.  Build it with New.
type Handler struct {
	res     Resolver
	eng     Decider
	domains Evicter
	tenants TenantEvicter
	info    requestinfo.Options
	log     *zap.Logger

	authn func(http.Handler) http.Handler
	read  func(http.Handler) http.Handler
	write func(http.Handler) http.Handler
}

// New wires a Handler.
func New(res Resolver, eng Decider, domains Evicter, tenants TenantEvicter, info requestinfo.Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{res: res, eng: eng, domains: domains, tenants: tenants, info: info, log: log}
}

// Guard protects every route with authn, read-only routes with read, and
// /evict with write.  Nil middlewares are skipped.
func (h *Handler) Guard(authn, read, write func(http.Handler) http.Handler) *Handler {
	h.authn, h.read, h.write = authn, read, write
	return h
}

// Routes builds the router mounted at /v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.authn != nil {
		r.Use(h.authn)
	}
	r.Group(func(r chi.Router) {
		if h.read != nil {
			r.Use(h.read)
		}
		r.Get("/resolve", h.handleResolve)
		r.Get("/decide", h.handleDecide)
		r.Get("/debug", h.handleDebug)
		r.Post("/rewrite", h.handleRewrite)
	})
	r.Group(func(r chi.Router) {
		if h.write != nil {
			r.Use(h.write)
		}
		r.Post("/evict", h.handleEvict)
	})
	return r
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

type resolveResponse struct {
	Matched bool           `json:"matched"`
	Bound   bool           `json:"bound"`
	Context tenant.Context `json:"context"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	path := r.URL.Query().Get("path")

	tc, err := h.res.Resolve(r.Context(), host, path)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resolveResponse{Matched: true, Bound: true, Context: tc})
	case errors.Is(err, resolver.ErrNotFound):
		tc, ok := h.res.Bind(r.Context(), host, path)
		status := http.StatusOK
		if !ok {
			status = http.StatusNotFound
		}
		writeJSON(w, status, resolveResponse{Bound: ok, Context: tc})
	default:
		h.log.Warn("resolve failed", zap.String("host", host), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := redirect.Request{
		Method: q.Get("method"),
		Host:   q.Get("host"),
		URI:    q.Get("uri"),
	}
	if req.Host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.URI == "" {
		req.URI = "/"
	}

	for _, f := range []struct {
		key string
		dst *bool
	}{
		{"admin", &req.Admin},
		{"auth", &req.Authenticated},
		{"ssl", &req.SSL},
		{"bot", &req.Bot},
	} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, f.key+": "+err.Error())
			return
		}
		*f.dst = b
	}
	path, _ := routing.SplitURI(req.URI)
	if !req.Admin {
		req.Admin = requestinfo.IsAdmin(path, h.info.AdminPaths)
	}

	tc, _ := h.res.Bind(r.Context(), req.Host, path)
	writeJSON(w, http.StatusOK, h.eng.Decide(r.Context(), req, tc))
}

type rewriteRequest struct {
	Host      string             `json:"host"`
	Path      string             `json:"path"`
	URL       string             `json:"url,omitempty"`
	Content   string             `json:"content,omitempty"`
	UploadDir *rewrite.UploadDir `json:"upload_dir,omitempty"`
}

type rewriteResponse struct {
	Rewritten bool               `json:"rewritten"`
	From      string             `json:"from,omitempty"`
	To        string             `json:"to,omitempty"`
	URL       string             `json:"url,omitempty"`
	Content   string             `json:"content,omitempty"`
	UploadDir *rewrite.UploadDir `json:"upload_dir,omitempty"`
}

func (h *Handler) handleRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	if req.Path == "" {
		req.Path = "/"
	}

	tc, ok := h.res.Bind(r.Context(), req.Host, req.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "host is not bound to a tenant")
		return
	}

	// Inactive rewriters hand every input back unchanged.
	rw, active := rewrite.For(tc)
	resp := rewriteResponse{
		Rewritten: active,
		URL:       rw.URL(req.URL),
		Content:   rw.Content(req.Content),
	}
	if active {
		resp.From, resp.To = rw.From, rw.To
	}
	if req.UploadDir != nil {
		d := rw.UploadDir(*req.UploadDir)
		resp.UploadDir = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

type evictRequest struct {
	Name     string `json:"name"`
	ID       uint64 `json:"id"`
	TenantID uint64 `json:"tenant_id"`
	Domain   string `json:"domain"` // tenant's true domain; drops its host index
}

func (h *Handler) handleEvict(w http.ResponseWriter, r *http.Request) {
	var req evictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Name == "" && req.ID == 0 && req.TenantID == 0 && req.Domain == "" {
		writeError(w, http.StatusBadRequest, "one of name, id, tenant_id, or domain is required")
		return
	}
	req.Domain = strings.TrimSpace(req.Domain)

	ctx := r.Context()
	if req.Name != "" {
		h.domains.EvictName(ctx, domain.Sanitize(req.Name))
	}
	if req.ID != 0 {
		h.domains.EvictID(ctx, req.ID)
	}
	if req.TenantID != 0 {
		h.domains.EvictPrimary(ctx, req.TenantID)
	}
	if req.TenantID != 0 || req.Domain != "" {
		h.tenants.Evict(req.TenantID, req.Domain)
	}
	h.log.Info("cache evicted",
		zap.String("name", req.Name),
		zap.Uint64("id", req.ID),
		zap.Uint64("tenant_id", req.TenantID),
		zap.String("domain", req.Domain))
	w.WriteHeader(http.StatusNoContent)
}

// handleDebug echoes what the pipeline sees about the caller.
func (h *Handler) handleDebug(w http.ResponseWriter, r *http.Request) {
	info := requestinfo.FromContext(r.Context())
	if info == nil {
		parsed := requestinfo.Parse(r, h.info)
		info = &parsed
	}
	writeJSON(w, http.StatusOK, info)
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
