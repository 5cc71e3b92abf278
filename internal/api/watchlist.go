package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"explorer/internal/models"
	"explorer/internal/store"
)

// handleWatchlist serves the collection endpoints
// GET /api/watchlist, POST /api/watchlist, DELETE /api/watchlist
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		sendError(w, "watchlist storage unavailable", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		items, err := s.deps.Store.Watchlist()
		if err != nil {
			sendError(w, "failed to read watchlist", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []models.WatchlistItem{}
		}
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"items": items,
			"total": len(items),
		})

	case http.MethodPost:
		var item models.WatchlistItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			sendError(w, "invalid watchlist item payload", http.StatusBadRequest)
			return
		}
		if item.AddedAt.IsZero() {
			item.AddedAt = time.Now().UTC()
		}

		err := s.deps.Store.AddWatchlistItem(item)
		switch {
		case errors.Is(err, store.ErrDuplicateWatchlistID):
			sendError(w, "id is already on the watchlist", http.StatusConflict)
		case err != nil:
			sendError(w, err.Error(), http.StatusBadRequest)
		default:
			sendJSON(w, http.StatusCreated, item)
		}

	case http.MethodDelete:
		if err := s.deps.Store.ClearWatchlist(); err != nil {
			sendError(w, "failed to clear watchlist", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWatchlistItem serves the per-item endpoint
// DELETE /api/watchlist/{id}
func (s *Server) handleWatchlistItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		sendError(w, "watchlist storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodDelete {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := subpath(r, "/api/watchlist/")
	if len(parts) != 1 || parts[0] == "" {
		sendError(w, "watchlist id required", http.StatusBadRequest)
		return
	}

	removed, err := s.deps.Store.RemoveWatchlistItem(parts[0])
	if err != nil {
		sendError(w, "failed to remove watchlist item", http.StatusInternalServerError)
		return
	}
	if !removed {
		sendError(w, "watchlist item not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
