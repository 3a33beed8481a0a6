// internal/registry/registry.go
//
// Read-through cache over the Domain Store.
//
// Context
// -------
// The resolver and the redirect engine ask three questions, each of which
// maps to one namespaced cache key:
//
//	ByName(name)       → domain:name:<name>
//	ByID(id)           → domain:id:<id>
//	Primary(tenantID)  → primary:<tenant_id>
//
// Workflow
// --------
//  1. Local sharded LRU.  A live entry (value or negative marker) answers.
//  2. Concurrent misses for the same key collapse into one singleflight
//     call.
//  3. Shared redis tier, when configured.
//  4. Store query.  A found record is written under both its name and id
//     keys in one step; an absent one becomes a negative marker.
//
// Notes
// -----
//   - There is no invalidation protocol.  Writers outside this service call
//     the Evict helpers (HTTP /v1/evict or `hostctl evict`); anything they
//     miss goes stale for at most one TTL.
//   - Store errors are never cached.  Callers decide how to fail open.
//   - A fill runs detached from the request that started it (bounded by
//     FillTimeout), so an aborted request never fails the callers sharing
//     its singleflight slot.
//   - More than one active primary picks the lowest id and logs a warning.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/hostmap/internal/cache"
	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/metrics"
)

// Store is the read API of the persistent domain table.  Absent rows are
// (nil, nil).
type Store interface {
	FindByName(ctx context.Context, name string) (*domain.Record, error)
	FindByID(ctx context.Context, id uint64) (*domain.Record, error)
	FindPrimaries(ctx context.Context, tenantID uint64) ([]domain.Record, error)
}

// Shared is an optional cross-process tier.  *cache.Redis satisfies it.
type Shared interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, b []byte, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
}

// Options configures a Registry.
type Options struct {
	Cache  cache.Options
	Shared Shared // nil disables the shared tier
	Logger *zap.Logger
}

// Registry is safe for concurrent use.
type Registry struct {
	store  Store
	local  *cache.Cache[domain.Record]
	shared Shared
	ttl    time.Duration
	negTTL time.Duration
	sfg    singleflight.Group
	log    *zap.Logger
}

// FillTimeout bounds one detached cache fill.
const FillTimeout = 5 * time.Second

// missingMarker is what the shared tier stores for a negative result.
var missingMarker = []byte("-")

type result struct {
	rec   domain.Record
	found bool
}

// New builds a Registry over store.
func New(store Store, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ttl, negTTL := opts.Cache.TTL, opts.Cache.NegativeTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if negTTL <= 0 {
		negTTL = cache.DefaultNegativeTTL
	}
	return &Registry{
		store:  store,
		local:  cache.New[domain.Record](opts.Cache),
		shared: opts.Shared,
		ttl:    ttl,
		negTTL: negTTL,
		log:    opts.Logger,
	}
}

// Close stops the local cache cleaner.
func (r *Registry) Close() error { return r.local.Close() }

//
// Keys
//

func NameKey(name string) string      { return "domain:name:" + name }
func IDKey(id uint64) string          { return "domain:id:" + strconv.FormatUint(id, 10) }
func PrimaryKey(tenant uint64) string { return "primary:" + strconv.FormatUint(tenant, 10) }

func recordKeys(rec domain.Record) []string {
	return []string{NameKey(rec.Name), IDKey(rec.ID)}
}

//
// Lookups
//

// ByName returns the record stored under name.  name must already be in
// canonical form (see domain.Sanitize).
func (r *Registry) ByName(ctx context.Context, name string) (domain.Record, bool, error) {
	return r.lookup(ctx, "name", NameKey(name), recordKeys,
		func(ctx context.Context) (*domain.Record, error) {
			return r.store.FindByName(ctx, name)
		})
}

// ByID returns the record with the given id.
func (r *Registry) ByID(ctx context.Context, id uint64) (domain.Record, bool, error) {
	return r.lookup(ctx, "id", IDKey(id), recordKeys,
		func(ctx context.Context) (*domain.Record, error) {
			return r.store.FindByID(ctx, id)
		})
}

// Primary returns the tenant’s primary domain.
func (r *Registry) Primary(ctx context.Context, tenantID uint64) (domain.Record, bool, error) {
	key := PrimaryKey(tenantID)
	return r.lookup(ctx, "primary", key,
		func(domain.Record) []string { return []string{key} },
		func(ctx context.Context) (*domain.Record, error) {
			rows, err := r.store.FindPrimaries(ctx, tenantID)
			if err != nil || len(rows) == 0 {
				return nil, err
			}
			if len(rows) > 1 {
				metrics.AmbiguousPrimaryTotal.Inc()
				r.log.Warn("multiple primary domains for tenant, using lowest id",
					zap.Uint64("tenant_id", tenantID),
					zap.Uint64("chosen_id", rows[0].ID),
					zap.Uint64("other_id", rows[1].ID))
			}
			rec := rows[0]
			return &rec, nil
		})
}

// PrimaryFullname returns the public form of the tenant’s primary domain,
// or fallback when there is none or the lookup fails.
func (r *Registry) PrimaryFullname(ctx context.Context, tenantID uint64, siteUsesWWW bool, fallback string) string {
	rec, ok, err := r.Primary(ctx, tenantID)
	if err != nil || !ok {
		return fallback
	}
	return rec.Fullname(siteUsesWWW)
}

func (r *Registry) lookup(
	ctx context.Context,
	kind, key string,
	keysFor func(domain.Record) []string,
	fetch func(context.Context) (*domain.Record, error),
) (domain.Record, bool, error) {
	if rec, found, cached := r.local.Get(key); cached {
		metrics.CacheHitsTotal.WithLabelValues(kind, "local").Inc()
		return rec, found, nil
	}

	v, err, _ := r.sfg.Do(key, func() (any, error) {
		// Double-check after singleflight barrier.
		if rec, found, cached := r.local.Get(key); cached {
			return result{rec: rec, found: found}, nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FillTimeout)
		defer cancel()

		if res, ok := r.fromShared(ctx, key, keysFor); ok {
			metrics.CacheHitsTotal.WithLabelValues(kind, "shared").Inc()
			return res, nil
		}

		metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
		rec, err := fetch(ctx)
		if err != nil {
			metrics.StoreErrorsTotal.WithLabelValues(kind).Inc()
			return nil, fmt.Errorf("registry: %s lookup %q: %w", kind, key, err)
		}
		if rec == nil {
			r.local.SetMissing(key)
			r.toShared(ctx, []string{key}, missingMarker, r.negTTL)
			return result{}, nil
		}

		rec.Name = domain.Sanitize(rec.Name)
		keys := keysFor(*rec)
		r.local.SetMany(keys, *rec)
		if b, err := json.Marshal(rec); err == nil {
			r.toShared(ctx, keys, b, r.ttl)
		}
		return result{rec: *rec, found: true}, nil
	})
	if err != nil {
		return domain.Record{}, false, err
	}
	res := v.(result)
	return res.rec, res.found, nil
}

func (r *Registry) fromShared(ctx context.Context, key string, keysFor func(domain.Record) []string) (result, bool) {
	if r.shared == nil {
		return result{}, false
	}
	b, ok := r.shared.Get(ctx, key)
	if !ok {
		return result{}, false
	}
	if string(b) == string(missingMarker) {
		r.local.SetMissing(key)
		return result{}, true
	}
	var rec domain.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		r.log.Warn("shared cache entry unreadable", zap.String("key", key), zap.Error(err))
		return result{}, false
	}
	r.local.SetMany(keysFor(rec), rec)
	return result{rec: rec, found: true}, true
}

func (r *Registry) toShared(ctx context.Context, keys []string, b []byte, ttl time.Duration) {
	if r.shared == nil {
		return
	}
	for _, k := range keys {
		r.shared.Set(ctx, k, b, ttl)
	}
}

//
// Eviction
//

// Evict drops every key rec is cached under.
func (r *Registry) Evict(ctx context.Context, rec domain.Record) {
	keys := recordKeys(rec)
	if rec.Type == domain.Primary {
		keys = append(keys, PrimaryKey(rec.TenantID))
	}
	r.evict(ctx, keys...)
}

// EvictName drops the name key and, when cached, the matching id key.
func (r *Registry) EvictName(ctx context.Context, name string) {
	name = domain.Sanitize(name)
	keys := []string{NameKey(name)}
	if rec, found, _ := r.local.Get(NameKey(name)); found {
		keys = append(keys, IDKey(rec.ID))
	}
	r.evict(ctx, keys...)
}

// EvictID drops the id key and, when cached, the matching name key.
func (r *Registry) EvictID(ctx context.Context, id uint64) {
	keys := []string{IDKey(id)}
	if rec, found, _ := r.local.Get(IDKey(id)); found {
		keys = append(keys, NameKey(rec.Name))
	}
	r.evict(ctx, keys...)
}

// EvictPrimary drops the tenant’s primary key.
func (r *Registry) EvictPrimary(ctx context.Context, tenantID uint64) {
	r.evict(ctx, PrimaryKey(tenantID))
}

func (r *Registry) evict(ctx context.Context, keys ...string) {
	r.local.Delete(keys...)
	if r.shared != nil {
		r.shared.Del(ctx, keys...)
	}
	r.log.Debug("domain cache evicted", zap.Strings("keys", keys))
}
