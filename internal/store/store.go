// Package store persists user preferences and chart history in a local
// bbolt file. Nothing chain-derived lives here except the bounded chart
// buffers; entity data stays in the query cache.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPrefs     = []byte("preferences")
	bucketWatchlist = []byte("watchlist")
	bucketCharts    = []byte("charts")
)

const (
	keyDevMode        = "dev_mode"
	keyAnalyticsMode  = "analytics_mode"
	keyActiveNetwork  = "active_network"
	keyRecentSearches = "recent_searches"

	maxRecentSearches = 5
)

// Store is the preference database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPrefs, bucketWatchlist, bucketCharts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetDevMode persists the developer-mode toggle.
func (s *Store) SetDevMode(on bool) error {
	return s.putJSON(bucketPrefs, keyDevMode, on)
}

// DevMode reads the developer-mode toggle, false when unset.
func (s *Store) DevMode() (bool, error) {
	var on bool
	err := s.getJSON(bucketPrefs, keyDevMode, &on)
	return on, err
}

// SetAnalyticsMode persists the analytics-mode toggle.
func (s *Store) SetAnalyticsMode(on bool) error {
	return s.putJSON(bucketPrefs, keyAnalyticsMode, on)
}

// AnalyticsMode reads the analytics-mode toggle, false when unset.
func (s *Store) AnalyticsMode() (bool, error) {
	var on bool
	err := s.getJSON(bucketPrefs, keyAnalyticsMode, &on)
	return on, err
}

// SetActiveNetwork persists the user's network selection.
func (s *Store) SetActiveNetwork(network string) error {
	return s.putJSON(bucketPrefs, keyActiveNetwork, network)
}

// ActiveNetwork reads the persisted network selection, empty when unset.
func (s *Store) ActiveNetwork() (string, error) {
	var network string
	err := s.getJSON(bucketPrefs, keyActiveNetwork, &network)
	return network, err
}

// AddRecentSearch pushes a query onto the search history: duplicates move
// to the front, the list stays capped.
func (s *Store) AddRecentSearch(query string) error {
	if query == "" {
		return nil
	}
	history, err := s.RecentSearches()
	if err != nil {
		return err
	}

	next := make([]string, 0, maxRecentSearches)
	next = append(next, query)
	for _, q := range history {
		if q == query {
			continue
		}
		next = append(next, q)
		if len(next) == maxRecentSearches {
			break
		}
	}
	return s.putJSON(bucketPrefs, keyRecentSearches, next)
}

// RecentSearches returns the search history, newest first.
func (s *Store) RecentSearches() ([]string, error) {
	var history []string
	if err := s.getJSON(bucketPrefs, keyRecentSearches, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) putJSON(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// getJSON reads one key. A missing key leaves v at its zero value; a
// corrupt value is treated the same way rather than failing the caller.
func (s *Store) getJSON(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, v); err != nil {
			slog.Warn("Discarding corrupt preference value", "key", key, "error", err)
		}
		return nil
	})
}
