// internal/cache/lru.go
//
// Sharded, TTL-aware LRU used by the domain registry and the site
// directory.
//
// Context
// -------
// Each key hashes (maphash) onto one of N shards.  A shard is a plain
// container/list LRU behind its own mutex, so concurrent requests only
// contend when they land on the same shard.  Entries carry an absolute
// expiry; a lookup that finds an expired entry treats it as a miss and
// drops it.
//
// Entries are either a value or a negative marker (“looked it up, nothing
// there”).  Negative markers use their own, usually shorter, TTL so a
// freshly-added hostname becomes visible quickly.
//
// Notes
// -----
//   - Values are stored as-is; callers store immutable values only.
//   - `SetMany` writes several keys under all of their shard locks at once,
//     so readers never observe one key of a group without the other.
package cache

import (
	"container/list"
	"hash/maphash"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultShards        = 16
	DefaultSize          = 4096
	DefaultTTL           = 5 * time.Minute
	DefaultNegativeTTL   = 30 * time.Second
	DefaultCleanInterval = time.Minute
)

// Options tunes a Cache.  Zero fields take the package defaults; a
// negative CleanInterval disables the background cleaner.
type Options struct {
	Shards        int // power of two
	Size          int // total entries across shards
	TTL           time.Duration
	NegativeTTL   time.Duration
	CleanInterval time.Duration
}

// Cache is safe for concurrent use.  Zero value is unusable; use New.
type Cache[V any] struct {
	seed   maphash.Seed
	shards []*shard[V]
	mask   uint64
	ttl    time.Duration
	negTTL time.Duration
	now    func() time.Time

	closed  uint32
	closeCh chan struct{}
}

type shard[V any] struct {
	mu   sync.Mutex
	cap  int
	ll   *list.List
	dict map[string]*list.Element
}

type item[V any] struct {
	key     string
	val     V
	missing bool
	exp     int64 // UnixNano
}

// New returns a Cache and, unless disabled, starts its cleaner.
func New[V any](opts Options) *Cache[V] {
	if opts.Shards <= 0 || opts.Shards&(opts.Shards-1) != 0 {
		opts.Shards = DefaultShards
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.CleanInterval == 0 {
		opts.CleanInterval = DefaultCleanInterval
	}

	perShard := opts.Size / opts.Shards
	if perShard < 1 {
		perShard = 1
	}

	c := &Cache[V]{
		seed:    maphash.MakeSeed(),
		shards:  make([]*shard[V], opts.Shards),
		mask:    uint64(opts.Shards - 1),
		ttl:     opts.TTL,
		negTTL:  opts.NegativeTTL,
		now:     time.Now,
		closeCh: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard[V]{
			cap:  perShard,
			ll:   list.New(),
			dict: make(map[string]*list.Element, perShard),
		}
	}

	if opts.CleanInterval > 0 {
		go c.cleanLoop(opts.CleanInterval)
	}
	return c
}

func (c *Cache[V]) index(key string) int {
	return int(maphash.String(c.seed, key) & c.mask)
}

// Get looks key up.  cached reports whether any live entry exists;
// found reports whether that entry holds a value rather than a negative
// marker.
func (c *Cache[V]) Get(key string) (v V, found, cached bool) {
	s := c.shards[c.index(key)]
	now := c.now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	ele, hit := s.dict[key]
	if !hit {
		return v, false, false
	}
	it := ele.Value.(*item[V])
	if now > it.exp {
		s.ll.Remove(ele)
		delete(s.dict, key)
		return v, false, false
	}
	s.ll.MoveToFront(ele)
	if it.missing {
		return v, false, true
	}
	return it.val, true, true
}

// Set stores v under key with the positive TTL.
func (c *Cache[V]) Set(key string, v V) {
	c.SetMany([]string{key}, v)
}

// SetMany stores v under every key in one step.
func (c *Cache[V]) SetMany(keys []string, v V) {
	exp := c.now().Add(c.ttl).UnixNano()
	c.write(keys, func(s *shard[V], k string) {
		s.put(&item[V]{key: k, val: v, exp: exp})
	})
}

// SetMissing records a negative marker under key.
func (c *Cache[V]) SetMissing(key string) {
	exp := c.now().Add(c.negTTL).UnixNano()
	c.write([]string{key}, func(s *shard[V], k string) {
		s.put(&item[V]{key: k, missing: true, exp: exp})
	})
}

// Delete removes keys.  Unknown keys are ignored.
func (c *Cache[V]) Delete(keys ...string) {
	c.write(keys, func(s *shard[V], k string) {
		if ele, ok := s.dict[k]; ok {
			s.ll.Remove(ele)
			delete(s.dict, k)
		}
	})
}

// write locks every shard touched by keys in index order, applies fn per
// key, and unlocks.
func (c *Cache[V]) write(keys []string, fn func(*shard[V], string)) {
	if len(keys) == 0 {
		return
	}
	idx := make([]int, 0, len(keys))
	seen := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		i := c.index(k)
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)

	for _, i := range idx {
		c.shards[i].mu.Lock()
	}
	for _, k := range keys {
		fn(c.shards[c.index(k)], k)
	}
	for j := len(idx) - 1; j >= 0; j-- {
		c.shards[idx[j]].mu.Unlock()
	}
}

// put inserts or replaces it.  Caller holds s.mu.
func (s *shard[V]) put(it *item[V]) {
	if ele, hit := s.dict[it.key]; hit {
		ele.Value = it
		s.ll.MoveToFront(ele)
		return
	}
	s.dict[it.key] = s.ll.PushFront(it)
	if s.ll.Len() > s.cap {
		last := s.ll.Back()
		s.ll.Remove(last)
		delete(s.dict, last.Value.(*item[V]).key)
	}
}

// Len reports the number of stored entries, expired ones included until
// the next clean.
func (c *Cache[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.ll.Len()
		s.mu.Unlock()
	}
	return n
}

// Clean drops every expired entry and returns how many were removed.
func (c *Cache[V]) Clean() (removed int) {
	now := c.now().UnixNano()
	for _, s := range c.shards {
		s.mu.Lock()
		for ele := s.ll.Back(); ele != nil; {
			prev := ele.Prev()
			if it := ele.Value.(*item[V]); now > it.exp {
				s.ll.Remove(ele)
				delete(s.dict, it.key)
				removed++
			}
			ele = prev
		}
		s.mu.Unlock()
	}
	return removed
}

func (c *Cache[V]) cleanLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			c.Clean()
		}
	}
}

// Close stops the cleaner.  The cache stays readable.
func (c *Cache[V]) Close() error {
	if atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		close(c.closeCh)
	}
	return nil
}
