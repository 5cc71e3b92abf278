package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"explorer/internal/models"
)

// ErrDuplicateWatchlistID rejects an add whose id is already pinned.
// Uniqueness is by id alone, not (type, id): account, contract and asset
// identifiers have disjoint shapes in practice, and the looser rule matches
// what users of the stored list observe.
var ErrDuplicateWatchlistID = errors.New("watchlist already contains this id")

// AddWatchlistItem pins an entity. Duplicate ids are rejected, not
// overwritten.
func (s *Store) AddWatchlistItem(item models.WatchlistItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode watchlist item: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWatchlist)
		if b.Get([]byte(item.ID)) != nil {
			return ErrDuplicateWatchlistID
		}
		return b.Put([]byte(item.ID), data)
	})
}

// Watchlist returns every pinned entity, oldest first.
func (s *Store) Watchlist() ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWatchlist).ForEach(func(k, v []byte) error {
			var item models.WatchlistItem
			if err := json.Unmarshal(v, &item); err != nil {
				// Skip corrupt entries instead of failing the whole list
				return nil
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}

// RemoveWatchlistItem unpins by id. Reports whether an item was removed.
func (s *Store) RemoveWatchlistItem(id string) (bool, error) {
	var removed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWatchlist)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(id))
	})
	return removed, err
}

// ClearWatchlist removes everything.
func (s *Store) ClearWatchlist() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketWatchlist); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketWatchlist)
		return err
	})
}
