package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanizio/hostmap/internal/cache"
	"github.com/yanizio/hostmap/internal/domain"
)

// fakeStore counts queries so tests can assert read-through behaviour.
type fakeStore struct {
	byName    map[string]domain.Record
	primaries map[uint64][]domain.Record
	err       error

	nameCalls    atomic.Int32
	idCalls      atomic.Int32
	primaryCalls atomic.Int32
}

func (f *fakeStore) FindByName(_ context.Context, name string) (*domain.Record, error) {
	f.nameCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byName[name]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeStore) FindByID(_ context.Context, id uint64) (*domain.Record, error) {
	f.idCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.byName {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindPrimaries(_ context.Context, tenant uint64) ([]domain.Record, error) {
	f.primaryCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.primaries[tenant], nil
}

// fakeShared is an in-memory Shared tier.
type fakeShared struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (s *fakeShared) Get(_ context.Context, k string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[k]
	return b, ok
}

func (s *fakeShared) Set(_ context.Context, k string, b []byte, _ time.Duration) {
	s.mu.Lock()
	s.m[k] = append([]byte(nil), b...)
	s.mu.Unlock()
}

func (s *fakeShared) Del(_ context.Context, keys ...string) {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
}

func newStore() *fakeStore {
	a := domain.New(1, "a.com", 10, domain.Primary, domain.WWWAuto)
	alt := domain.New(2, "alt-a.com", 10, domain.Redirect, domain.WWWAuto)
	return &fakeStore{
		byName:    map[string]domain.Record{"a.com": a, "alt-a.com": alt},
		primaries: map[uint64][]domain.Record{10: {a}},
	}
}

func newRegistry(store Store, shared Shared) *Registry {
	return New(store, Options{Cache: cache.Options{CleanInterval: -1}, Shared: shared})
}

func TestByName_ReadThroughFillsBothKeys(t *testing.T) {
	store := newStore()
	reg := newRegistry(store, nil)
	defer reg.Close()
	ctx := context.Background()

	rec, ok, err := reg.ByName(ctx, "alt-a.com")
	if err != nil || !ok || rec.ID != 2 {
		t.Fatalf("ByName = %#v %v %v", rec, ok, err)
	}
	if _, _, err := reg.ByName(ctx, "alt-a.com"); err != nil {
		t.Fatal(err)
	}
	if got := store.nameCalls.Load(); got != 1 {
		t.Fatalf("store queried %d times by name, want 1", got)
	}

	// The id key was filled by the name lookup.
	if rec, ok, _ := reg.ByID(ctx, 2); !ok || rec.Name != "alt-a.com" {
		t.Fatalf("ByID after ByName = %#v %v", rec, ok)
	}
	if got := store.idCalls.Load(); got != 0 {
		t.Fatalf("store queried %d times by id, want 0", got)
	}
}

func TestByName_NegativeCaching(t *testing.T) {
	store := newStore()
	reg := newRegistry(store, nil)
	defer reg.Close()

	for i := 0; i < 3; i++ {
		if _, ok, err := reg.ByName(context.Background(), "nope.com"); ok || err != nil {
			t.Fatalf("ByName(nope.com) = %v %v", ok, err)
		}
	}
	if got := store.nameCalls.Load(); got != 1 {
		t.Fatalf("store queried %d times, want 1", got)
	}
}

func TestByName_ErrorNotCached(t *testing.T) {
	store := newStore()
	store.err = errors.New("db down")
	reg := newRegistry(store, nil)
	defer reg.Close()

	if _, _, err := reg.ByName(context.Background(), "a.com"); !errors.Is(err, store.err) {
		t.Fatalf("want wrapped store error, got %v", err)
	}

	store.err = nil
	if _, ok, err := reg.ByName(context.Background(), "a.com"); !ok || err != nil {
		t.Fatalf("recovery lookup = %v %v", ok, err)
	}
}

func TestPrimary_AmbiguousPicksLowestID(t *testing.T) {
	store := newStore()
	store.primaries[20] = []domain.Record{
		domain.New(5, "low.com", 20, domain.Primary, domain.WWWAuto),
		domain.New(8, "high.com", 20, domain.Primary, domain.WWWAuto),
	}
	reg := newRegistry(store, nil)
	defer reg.Close()

	rec, ok, err := reg.Primary(context.Background(), 20)
	if err != nil || !ok || rec.Name != "low.com" {
		t.Fatalf("Primary = %#v %v %v", rec, ok, err)
	}
}

func TestPrimary_AbsentAndFullname(t *testing.T) {
	reg := newRegistry(newStore(), nil)
	defer reg.Close()
	ctx := context.Background()

	if _, ok, _ := reg.Primary(ctx, 99); ok {
		t.Fatal("unexpected primary for unknown tenant")
	}
	if got := reg.PrimaryFullname(ctx, 99, false, "net.example/site"); got != "net.example/site" {
		t.Fatalf("fallback = %q", got)
	}
	if got := reg.PrimaryFullname(ctx, 10, true, ""); got != "www.a.com" {
		t.Fatalf("PrimaryFullname = %q", got)
	}
}

func TestEvict(t *testing.T) {
	store := newStore()
	reg := newRegistry(store, nil)
	defer reg.Close()
	ctx := context.Background()

	rec, _, _ := reg.ByName(ctx, "a.com")
	reg.Primary(ctx, 10)
	reg.Evict(ctx, rec)

	reg.ByName(ctx, "a.com")
	reg.Primary(ctx, 10)
	if store.nameCalls.Load() != 2 || store.primaryCalls.Load() != 2 {
		t.Fatalf("evict did not force reload: name=%d primary=%d",
			store.nameCalls.Load(), store.primaryCalls.Load())
	}

	reg.EvictID(ctx, rec.ID)
	reg.ByName(ctx, "a.com")
	if store.nameCalls.Load() != 3 {
		t.Fatal("EvictID did not drop the paired name key")
	}
}

func TestSharedTier(t *testing.T) {
	shared := &fakeShared{m: map[string][]byte{}}
	ctx := context.Background()

	first := newStore()
	reg1 := newRegistry(first, shared)
	defer reg1.Close()
	reg1.ByName(ctx, "a.com")
	reg1.ByName(ctx, "missing.com")

	// A second process with a cold local cache is served by the shared tier.
	second := newStore()
	reg2 := newRegistry(second, shared)
	defer reg2.Close()

	if rec, ok, _ := reg2.ByName(ctx, "a.com"); !ok || rec.ID != 1 {
		t.Fatalf("shared hit = %#v %v", rec, ok)
	}
	if _, ok, _ := reg2.ByName(ctx, "missing.com"); ok {
		t.Fatal("shared negative marker ignored")
	}
	if second.nameCalls.Load() != 0 {
		t.Fatalf("second store queried %d times", second.nameCalls.Load())
	}

	reg2.EvictName(ctx, "a.com")
	if _, ok := shared.Get(ctx, NameKey("a.com")); ok {
		t.Fatal("EvictName left the shared entry")
	}
	if _, ok := shared.Get(ctx, IDKey(1)); ok {
		t.Fatal("EvictName left the paired id entry")
	}
}

func TestConcurrentMissesCollapse(t *testing.T) {
	store := newStore()
	reg := newRegistry(store, nil)
	defer reg.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := reg.ByName(context.Background(), "a.com"); !ok || err != nil {
				t.Errorf("ByName = %v %v", ok, err)
			}
		}()
	}
	wg.Wait()
	if got := store.nameCalls.Load(); got > 32 || got < 1 {
		t.Fatalf("unexpected store calls %d", got)
	}
}

// blockingStore parks FindByName until released or until the query
// context ends, like a slow database under a cancelled request.
type blockingStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) FindByName(ctx context.Context, name string) (*domain.Record, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.fakeStore.FindByName(ctx, name)
}

func TestByName_FillSurvivesCancelledCaller(t *testing.T) {
	store := &blockingStore{fakeStore: newStore(), entered: make(chan struct{}), release: make(chan struct{})}
	reg := newRegistry(store, nil)
	defer reg.Close()

	first, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reg.ByName(first, "a.com")
	}()
	<-store.entered

	var (
		found bool
		err   error
	)
	go func() {
		defer wg.Done()
		_, found, err = reg.ByName(context.Background(), "a.com")
	}()
	time.Sleep(20 * time.Millisecond) // let the second caller join the fill

	cancel()
	time.Sleep(10 * time.Millisecond)
	close(store.release)
	wg.Wait()

	if err != nil || !found {
		t.Fatalf("live caller: found=%v err=%v", found, err)
	}
	if _, ok, err := reg.ByName(context.Background(), "a.com"); !ok || err != nil {
		t.Fatalf("cached lookup = %v %v", ok, err)
	}
	if got := store.nameCalls.Load(); got != 1 {
		t.Fatalf("store calls = %d, want 1 (fill not cached)", got)
	}
}
