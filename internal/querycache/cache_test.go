package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"explorer/internal/retry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(128, retry.NewNoRetryStrategy())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func constQuery(key string, policy Policy, calls *int32) Query {
	return Query{
		Key:    key,
		Kind:   "test",
		Policy: policy,
		Fetch: func(ctx context.Context) (any, error) {
			atomic.AddInt32(calls, 1)
			return "value", nil
		},
	}
}

func TestCache_ImmutableFetchedOnce(t *testing.T) {
	c := newTestCache(t)
	var calls int32
	q := constQuery("net:ledger:123", Immutable, &calls)

	for i := 0; i < 5; i++ {
		v, err := c.Get(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "value" {
			t.Fatalf("unexpected value: %v", v)
		}
	}

	if calls != 1 {
		t.Errorf("expected 1 fetch for immutable entry, got %d", calls)
	}
}

func TestCache_StaleEntryRefetched(t *testing.T) {
	c := newTestCache(t)
	var calls int32
	q := constQuery("net:latest-ledger", Policy{Name: "latest", StaleAfter: 10 * time.Millisecond}, &calls)

	if _, err := c.Get(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), q); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("expected 2 fetches after staleness, got %d", calls)
	}
}

func TestCache_ConcurrentGetsShareOneFetch(t *testing.T) {
	c := newTestCache(t)

	var calls int32
	release := make(chan struct{})
	q := Query{
		Key:    "net:tx:abc",
		Kind:   "test",
		Policy: Immutable,
		Fetch: func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return "shared", nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), q)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if v != "shared" {
				t.Errorf("unexpected value: %v", v)
			}
		}()
	}

	// Give the goroutines time to pile onto the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single deduplicated fetch, got %d", got)
	}
}

func TestCache_FetchErrorSurfaces(t *testing.T) {
	c := newTestCache(t)

	wantErr := errors.New("horizon unavailable")
	q := Query{
		Key:    "net:account:G123",
		Kind:   "test",
		Policy: Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			return nil, wantErr
		},
	}

	if _, err := c.Get(context.Background(), q); !errors.Is(err, wantErr) {
		t.Errorf("expected fetch error to surface, got %v", err)
	}
}

func TestCache_PutServesWithoutFetch(t *testing.T) {
	c := newTestCache(t)

	c.Put("net:latest-ledger", Latest, "pushed")

	var calls int32
	q := constQuery("net:latest-ledger", Latest, &calls)

	v, err := c.Get(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if v != "pushed" {
		t.Errorf("expected pushed value, got %v", v)
	}
	if calls != 0 {
		t.Errorf("expected no fetch after authoritative put, got %d", calls)
	}
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	c := newTestCache(t)
	var calls int32
	q := constQuery("net:txs:recent", Immutable, &calls)

	if _, err := c.Get(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	c.Invalidate("net:txs:recent")
	if _, err := c.Get(context.Background(), q); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("expected refetch after invalidation, got %d fetches", calls)
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := newTestCache(t)

	c.Put("testnet:txs:recent:", Latest, "page1")
	c.Put("testnet:txs:recent:cursor123", Latest, "page2")
	c.Put("testnet:ledger:5", Immutable, "ledger")

	c.InvalidatePrefix("testnet:txs:recent")

	var calls int32
	if _, err := c.Get(context.Background(), constQuery("testnet:txs:recent:", Latest, &calls)); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected refetch of invalidated region, got %d fetches", calls)
	}

	// The ledger entry outside the region is untouched
	var ledgerCalls int32
	v, err := c.Get(context.Background(), constQuery("testnet:ledger:5", Immutable, &ledgerCalls))
	if err != nil {
		t.Fatal(err)
	}
	if v != "ledger" || ledgerCalls != 0 {
		t.Errorf("entry outside invalidated region was disturbed (v=%v calls=%d)", v, ledgerCalls)
	}
}

func TestCache_PurgeDropsEverything(t *testing.T) {
	c := newTestCache(t)
	c.Put("public:ledger:1", Immutable, "a")
	c.Put("public:ledger:2", Immutable, "b")

	c.Purge()

	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d entries", c.Len())
	}
}
