// internal/site/directory.go
//
// Cached tenant directory.
//
// Context
// -------
// The resolver needs two answers about tenants:
//
//   - `Tenant(id)`          the binding of the site a domain record points to.
//   - `Locate(host, path)`  the site the platform itself serves for an
//     unmapped host, chosen by longest matching mount path.
//
// Both are read-mostly, so answers are held in sharded TTL caches and
// concurrent misses collapse through singleflight.  A tenant that vanished
// is cached as a negative marker like any other absent row.
//
// Fills run detached from the request that started them, bounded by
// FillTimeout.  A binding whose site_config read failed is served with
// platform defaults but never cached, so overrides return on the next
// request.
package site

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/hostmap/internal/cache"
	"github.com/yanizio/hostmap/internal/routing"
)

// Source is the read API the directory needs.  *Repository satisfies it.
type Source interface {
	ByID(ctx context.Context, id uint64) (*Record, error)
	ByDomain(ctx context.Context, domain string) ([]Record, error)
	ConfigBySite(ctx context.Context, siteID uint64) (map[string]string, error)
}

// FillTimeout bounds one detached cache fill.
const FillTimeout = 5 * time.Second

// Directory is safe for concurrent use.
type Directory struct {
	src    Source
	byID   *cache.Cache[Binding]
	byHost *cache.Cache[[]Record]
	sfg    singleflight.Group
	log    *zap.Logger
}

// NewDirectory builds a Directory over src.
func NewDirectory(src Source, opts cache.Options, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		src:    src,
		byID:   cache.New[Binding](opts),
		byHost: cache.New[[]Record](opts),
		log:    log,
	}
}

// Close stops the cache cleaners.
func (d *Directory) Close() error {
	d.byID.Close()
	return d.byHost.Close()
}

func tenantKey(id uint64) string { return "site:id:" + strconv.FormatUint(id, 10) }
func hostKey(h string) string    { return "site:host:" + h }

// Tenant returns the binding for id.
func (d *Directory) Tenant(ctx context.Context, id uint64) (Binding, bool, error) {
	key := tenantKey(id)
	if b, found, cached := d.byID.Get(key); cached {
		return b, found, nil
	}

	v, err, _ := d.sfg.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FillTimeout)
		defer cancel()

		rec, err := d.src.ByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("site: load %d: %w", id, err)
		}
		if rec == nil {
			d.byID.SetMissing(key)
			return (*Binding)(nil), nil
		}
		b := Binding{
			ID:        rec.ID,
			NetworkID: rec.NetworkID,
			Domain:    strings.ToLower(rec.Domain),
			Path:      routing.TrailingSlash(rec.Path),
		}
		cfg, err := d.src.ConfigBySite(ctx, id)
		if err != nil {
			// Serve platform defaults for now; do not cache them.
			d.log.Warn("site_config load failed", zap.Uint64("site_id", id), zap.Error(err))
			return &b, nil
		}
		b.Config = cfg
		d.byID.Set(key, b)
		return &b, nil
	})
	if err != nil {
		return Binding{}, false, err
	}
	if b := v.(*Binding); b != nil {
		return *b, true, nil
	}
	return Binding{}, false, nil
}

// Locate returns the site the platform binds to host and path without any
// domain mapping: the live site on host with the longest mount path that
// contains path.
func (d *Directory) Locate(ctx context.Context, host, path string) (Binding, bool, error) {
	host = strings.ToLower(host)
	key := hostKey(host)

	recs, found, cached := d.byHost.Get(key)
	if !cached {
		v, err, _ := d.sfg.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FillTimeout)
			defer cancel()

			rows, err := d.src.ByDomain(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("site: locate %q: %w", host, err)
			}
			if len(rows) == 0 {
				d.byHost.SetMissing(key)
			} else {
				d.byHost.Set(key, rows)
			}
			return rows, nil
		})
		if err != nil {
			return Binding{}, false, err
		}
		recs = v.([]Record)
		found = len(recs) > 0
	}
	if !found {
		return Binding{}, false, nil
	}

	want := routing.TrailingSlash(path)
	best := -1
	for i, rec := range recs {
		mount := routing.TrailingSlash(rec.Path)
		if !strings.HasPrefix(want, mount) {
			continue
		}
		if best == -1 || len(mount) > len(routing.TrailingSlash(recs[best].Path)) {
			best = i
		}
	}
	if best == -1 {
		return Binding{}, false, nil
	}
	return d.Tenant(ctx, recs[best].ID)
}

// Evict drops the cached binding for id and the host index of domain.
// Either may be zero.
func (d *Directory) Evict(id uint64, domain string) {
	if id != 0 {
		d.byID.Delete(tenantKey(id))
	}
	if domain != "" {
		d.byHost.Delete(hostKey(strings.ToLower(domain)))
	}
}
