package querycache

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"explorer/internal/metrics"
	"explorer/internal/retry"
)

// Policy is the cache-freshness contract assigned per entity kind, not
// globally. StaleAfter <= 0 means the entry is immutable and never refetched.
type Policy struct {
	Name       string
	StaleAfter time.Duration
	PollEvery  time.Duration // refetch-interval hint for pollers, 0 = none
}

var (
	// Immutable covers closed ledgers, completed transactions and their
	// operations/effects, and deployed contract code.
	Immutable = Policy{Name: "immutable"}

	// Latest covers continuously refreshed views: latest ledger, fee
	// stats, recent transactions.
	Latest = Policy{Name: "latest", StaleAfter: 5 * time.Second, PollEvery: 5 * time.Second}

	// Snapshot covers account and asset point-in-time views.
	Snapshot = Policy{Name: "snapshot", StaleAfter: 30 * time.Second}
)

// Query pairs a deterministic cache key with its fetch descriptor. Equal
// inputs must produce equal keys so concurrent requesters share one fetch.
type Query struct {
	Key    string
	Kind   string
	Policy Policy
	Fetch  func(ctx context.Context) (any, error)
}

type entry struct {
	value     any
	fetchedAt time.Time
	policy    Policy
	stale     bool
}

// Cache is the shared client-side cache: a bounded LRU of fetch results
// with per-key in-flight deduplication and bounded retries on recoverable
// upstream failures.
type Cache struct {
	lru      *lru.Cache[string, entry]
	group    singleflight.Group
	strategy retry.Strategy
}

// New creates a cache holding at most size entries.
func New(size int, strategy retry.Strategy) (*Cache, error) {
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, strategy: strategy}, nil
}

// Get returns the cached value for q, fetching when the entry is absent,
// stale, or invalidated. Concurrent callers for the same key share a single
// in-flight fetch.
func (c *Cache) Get(ctx context.Context, q Query) (any, error) {
	metrics.QueriesTotal.WithLabelValues(q.Kind).Inc()

	if e, ok := c.lru.Get(q.Key); ok && usable(e) {
		metrics.CacheHits.Inc()
		return e.value, nil
	}
	metrics.CacheMisses.Inc()

	v, err, _ := c.group.Do(q.Key, func() (any, error) {
		// Another waiter may have refreshed the entry while we queued
		if e, ok := c.lru.Get(q.Key); ok && usable(e) {
			return e.value, nil
		}

		start := time.Now()
		var out any
		ferr := c.strategy.Execute(ctx, func() error {
			var err error
			out, err = q.Fetch(ctx)
			return err
		})
		metrics.FetchDuration.Observe(time.Since(start).Seconds())

		if ferr != nil {
			metrics.UpstreamErrors.WithLabelValues(q.Kind).Inc()
			return nil, ferr
		}

		c.lru.Add(q.Key, entry{value: out, fetchedAt: time.Now(), policy: q.Policy})
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put writes a value directly, bypassing the fetch path. Used by streams
// whose pushed records are authoritative (the ledger stream).
func (c *Cache) Put(key string, policy Policy, value any) {
	c.lru.Add(key, entry{value: value, fetchedAt: time.Now(), policy: policy})
}

// Invalidate marks one key stale so the next Get refetches it.
func (c *Cache) Invalidate(key string) {
	if e, ok := c.lru.Get(key); ok {
		e.stale = true
		c.lru.Add(key, e)
	}
}

// InvalidatePrefix marks every key in a cache region stale. List views keep
// their own ordering/pagination contract, so streams invalidate the region
// rather than writing records into it.
func (c *Cache) InvalidatePrefix(prefix string) {
	for _, key := range c.lru.Keys() {
		if hasPrefix(key, prefix) {
			c.Invalidate(key)
		}
	}
}

// Purge drops everything. Called on network switch so cache regions for
// different networks are never mixed.
func (c *Cache) Purge() {
	slog.Info("Query cache purged")
	c.lru.Purge()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func usable(e entry) bool {
	if e.stale {
		return false
	}
	if e.policy.StaleAfter <= 0 {
		return true // immutable
	}
	return time.Since(e.fetchedAt) < e.policy.StaleAfter
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
