package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"explorer/internal/format"
	"explorer/internal/metrics"
	"explorer/internal/models"
)

const sseBufferSize = 16

// Broadcaster fans one event feed out to any number of SSE clients. A
// client that cannot keep up drops events rather than blocking the
// publisher.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewBroadcaster creates an empty feed.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

// Publish encodes v as one SSE event and delivers it to every subscriber.
func (b *Broadcaster) Publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode stream event", "event", event, "error", err)
		return
	}
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- frame:
		default: // slow client, drop
		}
	}
}

// Subscribe registers a client. The returned cancel must be called when
// the client disconnects.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, sseBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Clients returns the current subscriber count.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// handleLedgerStream pushes each closed ledger to the client
// GET /stream/ledgers - Server-sent events
func (s *Server) handleLedgerStream(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, s.deps.LedgerFeed)
}

// handleTPSStream pushes each TPS sample to the client
// GET /stream/tps - Server-sent events
func (s *Server) handleTPSStream(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, s.deps.TPSFeed)
}

// handleAccountOperationsStream pushes each new operation touching one
// account to the client
// GET /stream/accounts/{account_id} - Server-sent events
func (s *Server) handleAccountOperationsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.AccountOperations == nil {
		sendError(w, "account streaming unavailable", http.StatusServiceUnavailable)
		return
	}
	parts := subpath(r, "/stream/accounts/")
	if len(parts) != 1 || !format.ValidAccountID(parts[0]) {
		sendError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	// Each connection gets its own feed; the upstream subscription lives
	// exactly as long as the client does.
	feed := NewBroadcaster()
	stop, err := s.deps.AccountOperations(r.Context(), parts[0], func(op models.OperationView) {
		feed.Publish("operation", op)
	})
	if err != nil {
		sendError(w, "failed to open operation stream", http.StatusBadGateway)
		return
	}
	defer stop()

	s.serveSSE(w, r, feed)
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, feed *Broadcaster) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := feed.Subscribe()
	defer cancel()

	metrics.SSEClients.Inc()
	defer metrics.SSEClients.Dec()

	// Comment frames keep intermediaries from timing the connection out
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-events:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
