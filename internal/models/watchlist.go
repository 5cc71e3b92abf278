package models

import (
	"fmt"
	"time"
)

// WatchlistItem is a user-pinned entity. The only entity this service owns.
type WatchlistItem struct {
	Type    string    `json:"type"` // account, contract or asset
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Validate checks the item shape before it is persisted.
func (w WatchlistItem) Validate() error {
	switch w.Type {
	case "account", "contract", "asset":
	default:
		return fmt.Errorf("invalid watchlist type %q", w.Type)
	}
	if w.ID == "" {
		return fmt.Errorf("watchlist item requires an id")
	}
	return nil
}
