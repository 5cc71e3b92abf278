package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"explorer/internal/expert"
	"explorer/internal/models"
	"explorer/internal/netclient"
	"explorer/internal/queries"
	"explorer/internal/querycache"
	"explorer/internal/store"
)

// Deps carries everything the handlers reach for. Sources and Expert may be
// left nil to derive clients from the registry; tests inject fakes.
type Deps struct {
	Registry *netclient.Registry
	Cache    *querycache.Cache
	Store    *store.Store

	// Sources resolves the query factory for a network. Defaults to
	// registry-backed clients.
	Sources func(netclient.Network) (queries.Source, error)

	// Expert resolves the enrichment client for a network. Defaults to the
	// public Stellar Expert API.
	Expert func(netclient.Network) *expert.Client

	// Toml is the mounted stellar.toml proxy.
	Toml http.Handler

	// SwitchNetwork rebinds the streaming layer when the active network
	// changes. Optional.
	SwitchNetwork func(netclient.Network) error

	// AccountOperations opens a per-account operation subscription on the
	// active network. The returned stop function tears it down. Optional;
	// when nil the account stream endpoint reports unavailable.
	AccountOperations func(ctx context.Context, accountID string, onOperation func(models.OperationView)) (func(), error)

	DefaultNetwork netclient.Network

	// SSE feeds, published to by the streaming layer.
	LedgerFeed *Broadcaster
	TPSFeed    *Broadcaster
}

// Server is the explorer's HTTP API
// Provides entity endpoints, watchlist CRUD, SSE feeds, Prometheus metrics
// and health checks
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	deps       Deps
	port       string
}

// NewServer creates a new API server instance
func NewServer(port string, deps Deps) *Server {
	if deps.Sources == nil {
		deps.Sources = func(n netclient.Network) (queries.Source, error) {
			h, err := deps.Registry.Handle(n)
			if err != nil {
				return queries.Source{}, err
			}
			return queries.NewSource(h), nil
		}
	}
	if deps.Expert == nil {
		deps.Expert = func(n netclient.Network) *expert.Client {
			return expert.NewClient(string(n), nil)
		}
	}
	if deps.LedgerFeed == nil {
		deps.LedgerFeed = NewBroadcaster()
	}
	if deps.TPSFeed == nil {
		deps.TPSFeed = NewBroadcaster()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:        ":" + port,
			Handler:     mux,
			ReadTimeout: 15 * time.Second,
			// SSE responses are unbounded; rely on per-handler contexts
			// instead of a global write timeout
			IdleTimeout: 60 * time.Second,
		},
		mux:  mux,
		deps: deps,
		port: port,
	}

	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Entity endpoints
	s.mux.HandleFunc("/api/search", instrument("search", s.handleSearch))
	s.mux.HandleFunc("/api/ledgers", instrument("ledgers", s.handleLedgers))
	s.mux.HandleFunc("/api/ledgers/", instrument("ledgers", s.handleLedgerRoutes))
	s.mux.HandleFunc("/api/transactions", instrument("transactions", s.handleTransactions))
	s.mux.HandleFunc("/api/transactions/", instrument("transactions", s.handleTransactionRoutes))
	s.mux.HandleFunc("/api/accounts/", instrument("accounts", s.handleAccountRoutes))
	s.mux.HandleFunc("/api/assets", instrument("assets", s.handleAssets))
	s.mux.HandleFunc("/api/assets/rating", instrument("assets", s.handleAssetRating))
	s.mux.HandleFunc("/api/orderbook", instrument("orderbook", s.handleOrderbook))
	s.mux.HandleFunc("/api/trades/stats", instrument("trades", s.handleTradeStats))
	s.mux.HandleFunc("/api/fees", instrument("fees", s.handleFeeStats))
	s.mux.HandleFunc("/api/contracts/", instrument("contracts", s.handleContractRoutes))

	// Network selection and aggregator stats
	s.mux.HandleFunc("/api/network", instrument("network", s.handleNetwork))
	s.mux.HandleFunc("/api/network/stats", instrument("network", s.handleNetworkStats))

	// User state
	s.mux.HandleFunc("/api/watchlist", instrument("watchlist", s.handleWatchlist))
	s.mux.HandleFunc("/api/watchlist/", instrument("watchlist", s.handleWatchlistItem))
	s.mux.HandleFunc("/api/charts/tps", instrument("charts", s.handleTPSChart))
	s.mux.HandleFunc("/api/charts/hourly", instrument("charts", s.handleHourlyChart))

	// Metadata proxy
	if s.deps.Toml != nil {
		s.mux.Handle("/api/toml", s.deps.Toml)
	}

	// SSE feeds
	s.mux.HandleFunc("/stream/ledgers", s.handleLedgerStream)
	s.mux.HandleFunc("/stream/tps", s.handleTPSStream)
	s.mux.HandleFunc("/stream/accounts/", s.handleAccountOperationsStream)
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/api", "/stream", "/health", "/metrics"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// subpath splits the remainder of an URL after a route prefix.
func subpath(r *http.Request, prefix string) []string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
