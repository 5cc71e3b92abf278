package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stellar/go/clients/horizonclient"

	"explorer/internal/metrics"
	"explorer/internal/models"
	"explorer/internal/netclient"
	"explorer/internal/queries"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// sendJSON writes a JSON response
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, message string, code int) {
	sendJSON(w, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// sendUpstreamError maps an upstream failure onto the API surface: a
// Horizon 404 means the entity does not exist, anything else is a retryable
// gateway failure.
func sendUpstreamError(w http.ResponseWriter, entity string, err error) {
	if status, ok := horizonStatus(err); ok && status == http.StatusNotFound {
		sendError(w, entity+" not found", http.StatusNotFound)
		return
	}
	if strings.Contains(err.Error(), "not found") {
		sendError(w, entity+" not found", http.StatusNotFound)
		return
	}
	slog.Error("Upstream fetch failed", "entity", entity, "error", err)
	sendError(w, "upstream temporarily unavailable, retry shortly", http.StatusBadGateway)
}

func horizonStatus(err error) (int, bool) {
	var herrp *horizonclient.Error
	if errors.As(err, &herrp) {
		return herrp.Problem.Status, true
	}
	var herr horizonclient.Error
	if errors.As(err, &herr) {
		return herr.Problem.Status, true
	}
	return 0, false
}

// instrument wraps a handler with the request-latency histogram.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// pageParams reads cursor and limit query parameters.
func pageParams(r *http.Request) (cursor string, limit uint) {
	q := r.URL.Query()
	cursor = q.Get("cursor")

	limit = defaultPageLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxPageLimit {
			limit = uint(parsed)
		}
	}
	return cursor, limit
}

// requestNetwork resolves which network a request addresses: an explicit
// ?network= parameter wins, then the persisted selection, then the
// configured default.
func (s *Server) requestNetwork(r *http.Request) (netclient.Network, error) {
	if param := r.URL.Query().Get("network"); param != "" {
		n := netclient.Network(param)
		if s.deps.Registry != nil && !s.deps.Registry.Valid(n) {
			return "", errors.New("unknown network " + param)
		}
		return n, nil
	}

	if s.deps.Store != nil {
		if active, err := s.deps.Store.ActiveNetwork(); err == nil && active != "" {
			return netclient.Network(active), nil
		}
	}
	return s.deps.DefaultNetwork, nil
}

// requestSource resolves the query factory for a request, writing the
// error response itself on failure.
func (s *Server) requestSource(w http.ResponseWriter, r *http.Request) (queries.Source, bool) {
	network, err := s.requestNetwork(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return queries.Source{}, false
	}
	src, err := s.deps.Sources(network)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return queries.Source{}, false
	}
	return src, true
}

// assetParam reads a code/issuer pair from query parameters. An empty code
// means the native asset.
func assetParam(r *http.Request, prefix string) queries.Asset {
	q := r.URL.Query()
	code := q.Get(prefix + "_code")
	if code == "" || strings.EqualFold(code, "XLM") && q.Get(prefix+"_issuer") == "" {
		return queries.Native
	}
	return queries.Asset{Code: code, Issuer: q.Get(prefix + "_issuer")}
}
