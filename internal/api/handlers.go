package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"explorer/internal/format"
	"explorer/internal/models"
	"explorer/internal/netclient"
	"explorer/internal/store"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		sendError(w, "endpoint not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "Stellar Explorer API",
		"version":     "1.0.0",
		"description": "Read-only query, cache and streaming layer over Horizon and Soroban RPC",
		"endpoints": map[string]string{
			"GET /health":                        "Health check endpoint",
			"GET /metrics":                       "Prometheus metrics for monitoring",
			"GET /api/search":                    "Classify a free-text query (?q=)",
			"GET /api/ledgers":                   "Recent ledgers (?cursor=, ?limit=)",
			"GET /api/ledgers/latest":            "Latest closed ledger",
			"GET /api/ledgers/{seq}":             "One ledger by sequence",
			"GET /api/transactions":              "Recent transactions",
			"GET /api/transactions/{hash}":       "One transaction (+/operations, /effects)",
			"GET /api/accounts/{id}":             "Account snapshot (+/transactions, /operations, /effects)",
			"GET /api/assets":                    "Asset search (?code=, ?issuer=)",
			"GET /api/assets/rating":             "Aggregator asset rating (?code=, ?issuer=)",
			"GET /api/orderbook":                 "Order book stats (?selling_code=..., ?buying_code=...)",
			"GET /api/trades/stats":              "24h trade stats (?base_code=..., ?counter_code=...)",
			"GET /api/fees":                      "Current fee stats",
			"GET /api/contracts/{id}":            "Contract instance (+/storage, /events)",
			"GET /api/network":                   "Active and available networks",
			"GET /api/network/stats":             "Aggregator network stats",
			"GET /api/watchlist":                 "Watchlist CRUD (POST, DELETE)",
			"GET /api/toml":                      "stellar.toml metadata proxy",
			"GET /stream/ledgers":                "SSE feed of closed ledgers",
			"GET /stream/tps":                    "SSE feed of TPS samples",
			"GET /stream/accounts/{id}":          "SSE feed of one account's operations",
		},
	}
	sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	network, _ := s.requestNetwork(r)
	health := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"service":        "stellar-explorer",
		"active_network": string(network),
	}

	// RPC tip is advisory; an unreachable node does not make the API
	// unhealthy
	if src, err := s.deps.Sources(network); err == nil && src.RPC != nil {
		if v, err := s.deps.Cache.Get(r.Context(), src.RPCLatestLedger()); err == nil {
			health["rpc_latest_ledger"] = v
		}
	}
	sendJSON(w, http.StatusOK, health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// handleSearch classifies a free-text query by shape
// GET /api/search?q=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		sendError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}

	entityType := format.DetectEntityType(q)
	if s.deps.Store != nil && entityType != format.EntityUnknown {
		if err := s.deps.Store.AddRecentSearch(q); err != nil {
			// History is cosmetic; the classification still stands
			sendJSON(w, http.StatusOK, models.SearchResult{Query: q, Type: string(entityType)})
			return
		}
	}
	sendJSON(w, http.StatusOK, models.SearchResult{Query: q, Type: string(entityType)})
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// handleLedgers lists recent ledgers
// GET /api/ledgers?cursor=&limit=
func (s *Server) handleLedgers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	v, err := s.deps.Cache.Get(r.Context(), src.RecentLedgers(cursor, limit))
	if err != nil {
		sendUpstreamError(w, "ledgers", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// handleLedgerRoutes routes ledger sub-endpoints
// GET /api/ledgers/latest and GET /api/ledgers/{seq}
func (s *Server) handleLedgerRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := subpath(r, "/api/ledgers/")
	if len(parts) != 1 {
		sendError(w, "endpoint not found", http.StatusNotFound)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	if parts[0] == "latest" {
		v, err := s.deps.Cache.Get(r.Context(), src.LatestLedger())
		if err != nil {
			sendUpstreamError(w, "latest ledger", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
		return
	}

	seq, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || seq == 0 {
		sendError(w, "ledger sequence must be a positive integer", http.StatusBadRequest)
		return
	}

	v, err := s.deps.Cache.Get(r.Context(), src.Ledger(uint32(seq)))
	if err != nil {
		sendUpstreamError(w, "ledger", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// handleTransactions lists recent transactions, failed included
// GET /api/transactions?cursor=&limit=
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	v, err := s.deps.Cache.Get(r.Context(), src.RecentTransactions(cursor, limit))
	if err != nil {
		sendUpstreamError(w, "transactions", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// handleTransactionRoutes routes transaction sub-endpoints
// GET /api/transactions/{hash} and /{hash}/operations, /{hash}/effects
func (s *Server) handleTransactionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := subpath(r, "/api/transactions/")
	if len(parts) == 0 || len(parts) > 2 {
		sendError(w, "endpoint not found", http.StatusNotFound)
		return
	}

	hash := parts[0]
	if format.DetectEntityType(hash) != format.EntityTransaction {
		sendError(w, "transaction hash must be 64 hex characters", http.StatusBadRequest)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	if len(parts) == 1 {
		v, err := s.deps.Cache.Get(r.Context(), src.Transaction(hash))
		if err != nil {
			sendUpstreamError(w, "transaction", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
		return
	}

	cursor, limit := pageParams(r)
	switch parts[1] {
	case "operations":
		v, err := s.deps.Cache.Get(r.Context(), src.TransactionOperations(hash, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "transaction operations", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	case "effects":
		v, err := s.deps.Cache.Get(r.Context(), src.TransactionEffects(hash, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "transaction effects", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	default:
		sendError(w, "endpoint not found", http.StatusNotFound)
	}
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// handleAccountRoutes routes account sub-endpoints
// GET /api/accounts/{id} and /{id}/transactions, /{id}/operations, /{id}/effects
func (s *Server) handleAccountRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := subpath(r, "/api/accounts/")
	if len(parts) == 0 || len(parts) > 2 {
		sendError(w, "endpoint not found", http.StatusNotFound)
		return
	}

	accountID := parts[0]
	if !format.ValidAccountID(accountID) {
		sendError(w, "account id must be a 56-character G address", http.StatusBadRequest)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	if len(parts) == 1 {
		v, err := s.deps.Cache.Get(r.Context(), src.Account(accountID))
		if err != nil {
			sendUpstreamError(w, "account", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
		return
	}

	cursor, limit := pageParams(r)
	switch parts[1] {
	case "transactions":
		v, err := s.deps.Cache.Get(r.Context(), src.AccountTransactions(accountID, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "account transactions", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	case "operations":
		v, err := s.deps.Cache.Get(r.Context(), src.AccountOperations(accountID, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "account operations", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	case "effects":
		v, err := s.deps.Cache.Get(r.Context(), src.AccountEffects(accountID, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "account effects", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	default:
		sendError(w, "endpoint not found", http.StatusNotFound)
	}
}

// =============================================================================
// MARKET ENDPOINTS
// =============================================================================

// handleAssets searches issued assets
// GET /api/assets?code=&issuer=&cursor=&limit=
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		sendError(w, "query parameter code is required", http.StatusBadRequest)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}
	cursor, limit := pageParams(r)

	v, err := s.deps.Cache.Get(r.Context(), src.Assets(code, r.URL.Query().Get("issuer"), cursor, limit))
	if err != nil {
		sendUpstreamError(w, "assets", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// handleAssetRating proxies the aggregator's composite asset rating,
// nullable by design
// GET /api/assets/rating?code=&issuer=
func (s *Server) handleAssetRating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := r.URL.Query().Get("code")
	issuer := r.URL.Query().Get("issuer")
	if code == "" || issuer == "" {
		sendError(w, "query parameters code and issuer are required", http.StatusBadRequest)
		return
	}
	network, err := s.requestNetwork(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating := s.deps.Expert(network).AssetRating(r.Context(), code, issuer)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"code":   code,
		"issuer": issuer,
		"rating": rating, // null when the aggregator is unavailable
	})
}

// handleOrderbook returns order book depth with derived mid price and spread
// GET /api/orderbook?selling_code=&selling_issuer=&buying_code=&buying_issuer=
func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	v, err := s.deps.Cache.Get(r.Context(), src.Orderbook(assetParam(r, "selling"), assetParam(r, "buying")))
	if err != nil {
		sendUpstreamError(w, "orderbook", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// handleTradeStats returns derived 24h trade statistics for a pair
// GET /api/trades/stats?base_code=&base_issuer=&counter_code=&counter_issuer=
func (s *Server) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	v, err := s.deps.Cache.Get(r.Context(), src.TradeStats(assetParam(r, "base"), assetParam(r, "counter")))
	if err != nil {
		sendUpstreamError(w, "trade stats", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// handleFeeStats returns current network fee conditions
// GET /api/fees
func (s *Server) handleFeeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	v, err := s.deps.Cache.Get(r.Context(), src.FeeStats())
	if err != nil {
		sendUpstreamError(w, "fee stats", err)
		return
	}
	sendJSON(w, http.StatusOK, v)
}

// =============================================================================
// CONTRACT ENDPOINTS
// =============================================================================

// handleContractRoutes routes contract sub-endpoints
// GET /api/contracts/{id} and /{id}/storage, /{id}/events
func (s *Server) handleContractRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := subpath(r, "/api/contracts/")
	if len(parts) == 0 || len(parts) > 2 {
		sendError(w, "endpoint not found", http.StatusNotFound)
		return
	}

	contractID := parts[0]
	if !format.ValidContractID(contractID) {
		sendError(w, "contract id must be a 56-character C address", http.StatusBadRequest)
		return
	}
	src, ok := s.requestSource(w, r)
	if !ok {
		return
	}

	if len(parts) == 1 {
		v, err := s.deps.Cache.Get(r.Context(), src.Contract(contractID))
		if err != nil {
			sendUpstreamError(w, "contract", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
		return
	}

	switch parts[1] {
	case "storage":
		v, err := s.deps.Cache.Get(r.Context(), src.Contract(contractID))
		if err != nil {
			sendUpstreamError(w, "contract", err)
			return
		}
		view, ok := v.(models.ContractView)
		if !ok {
			sendError(w, "internal error", http.StatusInternalServerError)
			return
		}
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"contract_id": contractID,
			"storage":     view.Storage,
			"total":       len(view.Storage),
		})
	case "events":
		cursor, limit := pageParams(r)
		v, err := s.deps.Cache.Get(r.Context(), src.ContractEvents(contractID, cursor, limit))
		if err != nil {
			sendUpstreamError(w, "contract events", err)
			return
		}
		sendJSON(w, http.StatusOK, v)
	case "validation":
		network, err := s.requestNetwork(r)
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		validation := s.deps.Expert(network).ContractValidation(r.Context(), contractID)
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"contract_id": contractID,
			"validation":  validation, // null when the aggregator is unavailable
		})
	default:
		sendError(w, "endpoint not found", http.StatusNotFound)
	}
}

// =============================================================================
// NETWORK ENDPOINTS
// =============================================================================

// handleNetwork reads or updates the active network selection
// GET /api/network and PUT /api/network {"network": "testnet"}
func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		network, err := s.requestNetwork(r)
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var available []netclient.Descriptor
		if s.deps.Registry != nil {
			available = s.deps.Registry.Networks()
		}
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"active":    string(network),
			"available": available,
		})

	case http.MethodPut:
		var body struct {
			Network string `json:"network"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Network == "" {
			sendError(w, "body must be {\"network\": \"...\"}", http.StatusBadRequest)
			return
		}
		network := netclient.Network(body.Network)
		if s.deps.Registry != nil && !s.deps.Registry.Valid(network) {
			sendError(w, "unknown network "+body.Network, http.StatusBadRequest)
			return
		}

		if s.deps.Store != nil {
			if err := s.deps.Store.SetActiveNetwork(body.Network); err != nil {
				sendError(w, "failed to persist selection", http.StatusInternalServerError)
				return
			}
		}
		// Streams for the old network are torn down before the response:
		// records from two networks must never mix
		if s.deps.SwitchNetwork != nil {
			if err := s.deps.SwitchNetwork(network); err != nil {
				sendError(w, "failed to switch streams: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
		sendJSON(w, http.StatusOK, map[string]string{"active": body.Network})

	default:
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNetworkStats proxies aggregator network statistics, nullable by
// design
// GET /api/network/stats
func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	network, err := s.requestNetwork(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats := s.deps.Expert(network).NetworkStats(r.Context())
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"network": string(network),
		"stats":   stats, // null when the aggregator is unavailable
	})
}

// =============================================================================
// CHART ENDPOINTS
// =============================================================================

// handleTPSChart returns the persisted TPS samples for a network
// GET /api/charts/tps
func (s *Server) handleTPSChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	network, err := s.requestNetwork(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.deps.Store == nil {
		sendJSON(w, http.StatusOK, []store.TPSPoint{})
		return
	}
	sendJSON(w, http.StatusOK, store.TPSBuffer(s.deps.Store, string(network)).Items())
}

// handleHourlyChart returns the persisted hourly transaction counts
// GET /api/charts/hourly
func (s *Server) handleHourlyChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	network, err := s.requestNetwork(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.deps.Store == nil {
		sendJSON(w, http.StatusOK, []store.HourlyBucket{})
		return
	}
	sendJSON(w, http.StatusOK, store.NewHourlyCounter(s.deps.Store, string(network)).Buckets())
}
