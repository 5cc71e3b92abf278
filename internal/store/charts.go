package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	tpsCapacity = 30
	tpsMaxAge   = 10 * time.Minute

	hourlyCapacity = 24
	hourlyMaxAge   = 24 * time.Hour
)

// TPSPoint is one throughput sample on the activity chart.
type TPSPoint struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"v"`
}

// HourlyBucket counts successful transactions in one clock hour.
type HourlyBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// TPSBuffer returns the persisted TPS sample buffer for one network.
func TPSBuffer(s *Store, network string) *RingBuffer[TPSPoint] {
	return NewRingBuffer(tpsCapacity, tpsMaxAge,
		func(p TPSPoint) time.Time { return p.Timestamp },
		chartPersistence[TPSPoint]{db: s.db, key: network + ":tps"})
}

// HourlyCounter accumulates ledger transaction counts into per-hour
// buckets, capped at a day of history.
type HourlyCounter struct {
	buf *RingBuffer[HourlyBucket]
}

// NewHourlyCounter returns the persisted hourly counter for one network.
func NewHourlyCounter(s *Store, network string) *HourlyCounter {
	return &HourlyCounter{
		buf: NewRingBuffer(hourlyCapacity, hourlyMaxAge,
			func(b HourlyBucket) time.Time { return b.Hour },
			chartPersistence[HourlyBucket]{db: s.db, key: network + ":hourly"}),
	}
}

// Observe adds a ledger's transaction count to its hour bucket.
func (c *HourlyCounter) Observe(closedAt time.Time, txs int64) error {
	hour := closedAt.UTC().Truncate(time.Hour)
	return c.buf.Mutate(func(buckets []HourlyBucket) []HourlyBucket {
		if n := len(buckets); n > 0 && buckets[n-1].Hour.Equal(hour) {
			buckets[n-1].Count += txs
			return buckets
		}
		return append(buckets, HourlyBucket{Hour: hour, Count: txs})
	})
}

// Buckets returns the counted hours, oldest first.
func (c *HourlyCounter) Buckets() []HourlyBucket {
	return c.buf.Items()
}

// chartPersistence stores a buffer as one JSON array in the charts bucket,
// namespaced per network.
type chartPersistence[T any] struct {
	db  *bolt.DB
	key string
}

func (p chartPersistence[T]) Load() []T {
	var items []T
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCharts).Get([]byte(p.key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &items); err != nil {
			slog.Warn("Discarding corrupt chart history", "key", p.key, "error", err)
			items = nil
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return items
}

func (p chartPersistence[T]) Save(items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode chart history: %w", err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCharts).Put([]byte(p.key), data)
	})
}
