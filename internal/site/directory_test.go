package site

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanizio/hostmap/internal/cache"
)

type fakeSource struct {
	sites   map[uint64]Record
	cfg     map[uint64]map[string]string
	byIDN   atomic.Int32
	byHostN atomic.Int32
	err     error
	cfgErrs atomic.Int32 // ConfigBySite fails while positive
}

func (f *fakeSource) ByID(_ context.Context, id uint64) (*Record, error) {
	f.byIDN.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.sites[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeSource) ByDomain(_ context.Context, domain string) ([]Record, error) {
	f.byHostN.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []Record
	for _, rec := range f.sites {
		if rec.Domain == domain {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSource) ConfigBySite(_ context.Context, id uint64) (map[string]string, error) {
	if f.cfgErrs.Add(-1) >= 0 {
		return nil, errors.New("site_config: connection reset")
	}
	return f.cfg[id], nil
}

func newDirectory(t *testing.T, src Source) *Directory {
	t.Helper()
	d := NewDirectory(src, cache.Options{CleanInterval: -1}, nil)
	t.Cleanup(func() { d.Close() })
	return d
}

func testSource() *fakeSource {
	return &fakeSource{
		sites: map[uint64]Record{
			1: {ID: 1, NetworkID: 1, Domain: "network.example", Path: "/"},
			5: {ID: 5, NetworkID: 1, Domain: "network.example", Path: "/blog"},
			6: {ID: 6, NetworkID: 1, Domain: "Other.Example", Path: "/"},
		},
		cfg: map[uint64]map[string]string{5: {"use_www": "1"}},
	}
}

func TestTenantReadThrough(t *testing.T) {
	src := testSource()
	d := newDirectory(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, ok, err := d.Tenant(ctx, 5)
		if err != nil || !ok {
			t.Fatalf("Tenant(5) = %v %v", ok, err)
		}
		if b.Path != "/blog/" || b.Config["use_www"] != "1" {
			t.Fatalf("unexpected binding: %#v", b)
		}
	}
	if n := src.byIDN.Load(); n != 1 {
		t.Fatalf("store hit %d times, want 1", n)
	}

	b, _, _ := d.Tenant(ctx, 6)
	if b.Domain != "other.example" {
		t.Fatalf("domain not lowercased: %q", b.Domain)
	}
}

func TestTenantMissingIsCached(t *testing.T) {
	src := testSource()
	d := newDirectory(t, src)

	for i := 0; i < 2; i++ {
		if _, ok, err := d.Tenant(context.Background(), 42); ok || err != nil {
			t.Fatalf("Tenant(42) = %v %v", ok, err)
		}
	}
	if n := src.byIDN.Load(); n != 1 {
		t.Fatalf("store hit %d times, want 1", n)
	}
}

func TestTenantErrorNotCached(t *testing.T) {
	src := testSource()
	src.err = errors.New("db down")
	d := newDirectory(t, src)

	if _, _, err := d.Tenant(context.Background(), 5); err == nil {
		t.Fatal("expected error")
	}
	src.err = nil
	if _, ok, err := d.Tenant(context.Background(), 5); !ok || err != nil {
		t.Fatalf("after recovery Tenant(5) = %v %v", ok, err)
	}
}

func TestLocateLongestMount(t *testing.T) {
	d := newDirectory(t, testSource())
	ctx := context.Background()

	cases := []struct {
		path string
		want uint64
	}{
		{"/blog/posts/1", 5},
		{"/blog", 5},
		{"/blogger", 1},
		{"/", 1},
	}
	for _, c := range cases {
		b, ok, err := d.Locate(ctx, "NETWORK.example", c.path)
		if err != nil || !ok {
			t.Fatalf("Locate(%q) = %v %v", c.path, ok, err)
		}
		if b.ID != c.want {
			t.Errorf("Locate(%q) = site %d, want %d", c.path, b.ID, c.want)
		}
	}

	if _, ok, _ := d.Locate(ctx, "unknown.example", "/"); ok {
		t.Fatal("unknown host located")
	}
}

func TestEvict(t *testing.T) {
	src := testSource()
	d := newDirectory(t, src)
	ctx := context.Background()

	d.Locate(ctx, "network.example", "/blog/")
	d.Evict(5, "network.example")
	d.Locate(ctx, "network.example", "/blog/")

	if n := src.byHostN.Load(); n != 2 {
		t.Fatalf("host lookups = %d, want 2", n)
	}
	if n := src.byIDN.Load(); n != 2 {
		t.Fatalf("id lookups = %d, want 2", n)
	}
}

func TestEvictDomainOnly(t *testing.T) {
	src := testSource()
	d := newDirectory(t, src)
	ctx := context.Background()

	d.Locate(ctx, "network.example", "/blog/")
	d.Evict(0, "Network.Example")
	d.Locate(ctx, "network.example", "/blog/")

	if n := src.byHostN.Load(); n != 2 {
		t.Fatalf("host lookups = %d, want 2", n)
	}
	if n := src.byIDN.Load(); n != 1 {
		t.Fatalf("id lookups = %d, want 1", n)
	}
}

func TestTenantConfigErrorNotCached(t *testing.T) {
	src := testSource()
	src.cfgErrs.Store(1)
	d := newDirectory(t, src)
	ctx := context.Background()

	b, ok, err := d.Tenant(ctx, 5)
	if err != nil || !ok {
		t.Fatalf("Tenant(5) = %v %v", ok, err)
	}
	if b.Config != nil {
		t.Fatalf("failed config load returned %v", b.Config)
	}

	b, _, _ = d.Tenant(ctx, 5)
	if b.Config["use_www"] != "1" {
		t.Fatalf("override lost after recovery: %v", b.Config)
	}
	b, _, _ = d.Tenant(ctx, 5)
	if n := src.byIDN.Load(); n != 2 || b.Config["use_www"] != "1" {
		t.Fatalf("id lookups = %d, want 2 (recovered binding cached)", n)
	}
}

// slowSource blocks ByID until released or until the query context ends.
type slowSource struct {
	*fakeSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSource) ByID(ctx context.Context, id uint64) (*Record, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fakeSource.ByID(ctx, id)
}

func TestTenantFillSurvivesCancelledCaller(t *testing.T) {
	src := &slowSource{fakeSource: testSource(), entered: make(chan struct{}), release: make(chan struct{})}
	d := newDirectory(t, src)

	first, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.Tenant(first, 5)
	}()
	<-src.entered

	var (
		ok  bool
		err error
	)
	go func() {
		defer wg.Done()
		_, ok, err = d.Tenant(context.Background(), 5)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if err != nil || !ok {
		t.Fatalf("live caller: ok=%v err=%v", ok, err)
	}
	if n := src.byIDN.Load(); n != 1 {
		t.Fatalf("id lookups = %d, want 1", n)
	}
}
