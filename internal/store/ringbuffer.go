package store

import (
	"sync"
	"time"
)

// Persistence loads and saves a ring buffer's contents. Implementations
// must treat unreadable stored data as an empty buffer, never an error.
type Persistence[T any] interface {
	Load() []T
	Save(items []T) error
}

// nopPersistence keeps a buffer purely in memory.
type nopPersistence[T any] struct{}

func (nopPersistence[T]) Load() []T            { return nil }
func (nopPersistence[T]) Save(items []T) error { return nil }

// RingBuffer is a bounded append-only queue: at most capacity entries, and
// entries older than maxAge are pruned on every write. The bound is the
// data-structure invariant; where the contents live is the persistence's
// concern.
type RingBuffer[T any] struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	timeOf   func(T) time.Time
	persist  Persistence[T]
	items    []T
	now      func() time.Time
}

// NewRingBuffer creates a buffer and loads any persisted contents. maxAge
// <= 0 disables age pruning. persist may be nil for an in-memory buffer.
func NewRingBuffer[T any](capacity int, maxAge time.Duration, timeOf func(T) time.Time, persist Persistence[T]) *RingBuffer[T] {
	if persist == nil {
		persist = nopPersistence[T]{}
	}
	b := &RingBuffer[T]{
		capacity: capacity,
		maxAge:   maxAge,
		timeOf:   timeOf,
		persist:  persist,
		now:      time.Now,
	}
	b.items = persist.Load()
	b.prune()
	return b
}

// Append adds one entry, prunes, and saves.
func (b *RingBuffer[T]) Append(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	b.prune()
	return b.persist.Save(b.items)
}

// Mutate applies fn to the contents, then prunes and saves. Used where an
// append is conditional, like incrementing the current hourly bucket.
func (b *RingBuffer[T]) Mutate(fn func(items []T) []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = fn(b.items)
	b.prune()
	return b.persist.Save(b.items)
}

// Items returns a copy of the contents, oldest first.
func (b *RingBuffer[T]) Items() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the current entry count.
func (b *RingBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// prune enforces age first, then the count bound. Callers hold the lock.
func (b *RingBuffer[T]) prune() {
	if b.maxAge > 0 {
		cutoff := b.now().Add(-b.maxAge)
		kept := b.items[:0]
		for _, item := range b.items {
			if !b.timeOf(item).Before(cutoff) {
				kept = append(kept, item)
			}
		}
		b.items = kept
	}
	if b.capacity > 0 && len(b.items) > b.capacity {
		b.items = b.items[len(b.items)-b.capacity:]
	}
}
