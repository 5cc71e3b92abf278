package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"explorer/internal/api"
	"explorer/internal/config"
	"explorer/internal/models"
	"explorer/internal/netclient"
	"explorer/internal/queries"
	"explorer/internal/querycache"
	"explorer/internal/retry"
	"explorer/internal/store"
	"explorer/internal/stream"
	"explorer/internal/tomlproxy"
)

func main() {
	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Configuration loaded",
		"port", cfg.Port,
		"default_network", cfg.DefaultNetwork,
		"log_level", cfg.LogLevel,
	)

	// 3. Open the preference store
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to open preference store: %v", err)
	}
	defer st.Close()

	// 4. Build the network registry, applying endpoint overrides to the
	// default network only
	descriptors := netclient.DefaultDescriptors()
	if cfg.HorizonURLOverride != "" || cfg.RPCURLOverride != "" {
		d := descriptors[netclient.Network(cfg.DefaultNetwork)]
		if cfg.HorizonURLOverride != "" {
			d.HorizonURL = cfg.HorizonURLOverride
		}
		if cfg.RPCURLOverride != "" {
			d.RPCURL = cfg.RPCURLOverride
		}
		descriptors[netclient.Network(cfg.DefaultNetwork)] = d
	}
	registry := netclient.NewRegistry(descriptors)

	// 5. Query cache with the configured retry strategy
	cache, err := querycache.New(cfg.CacheSize, retry.NewStrategy(retry.LoadConfig()))
	if err != nil {
		log.Fatalf("Failed to create query cache: %v", err)
	}

	// 6. stellar.toml metadata proxy
	tomlProxy, err := tomlproxy.New(tomlproxy.Options{
		Timeout:           cfg.TomlTimeout,
		RequestsPerWindow: cfg.TomlRequestsPerIP,
		Window:            cfg.TomlWindow,
	})
	if err != nil {
		log.Fatalf("Failed to create toml proxy: %v", err)
	}

	// 7. SSE feeds and the streaming layer for the active network
	ledgerFeed := api.NewBroadcaster()
	tpsFeed := api.NewBroadcaster()

	active := netclient.Network(cfg.DefaultNetwork)
	if persisted, err := st.ActiveNetwork(); err == nil && persisted != "" && registry.Valid(netclient.Network(persisted)) {
		active = netclient.Network(persisted)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streams := &streamSet{
		ctx:        ctx,
		registry:   registry,
		cache:      cache,
		store:      st,
		opts:       stream.Options{Heartbeat: cfg.StreamHeartbeat},
		ledgerFeed: ledgerFeed,
		tpsFeed:    tpsFeed,
	}
	if err := streams.bind(active); err != nil {
		log.Fatalf("Failed to start streams for %s: %v", active, err)
	}
	defer streams.close()

	// 8. HTTP API
	server := api.NewServer(cfg.Port, api.Deps{
		Registry:          registry,
		Cache:             cache,
		Store:             st,
		Toml:              tomlProxy,
		SwitchNetwork:     streams.bind,
		AccountOperations: streams.AccountOperations,
		DefaultNetwork:    netclient.Network(cfg.DefaultNetwork),
		LedgerFeed:        ledgerFeed,
		TPSFeed:           tpsFeed,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	// 9. Wait for shutdown signal
	<-ctx.Done()
	slog.Warn("Interrupt received, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "error", err)
	}

	slog.Info("Explorer stopped")
}

// streamSet owns the stream manager for the currently active network and
// swaps it atomically when the selection changes.
type streamSet struct {
	ctx        context.Context
	registry   *netclient.Registry
	cache      *querycache.Cache
	store      *store.Store
	opts       stream.Options
	ledgerFeed *api.Broadcaster
	tpsFeed    *api.Broadcaster

	mu      sync.Mutex
	manager *stream.Manager
}

// bind tears down the previous network's streams and cache contents, then
// subscribes to the new network. Old records must be gone before the first
// new record lands.
func (s *streamSet) bind(network netclient.Network) error {
	handle, err := s.registry.Handle(network)
	if err != nil {
		return err
	}
	source := queries.NewSource(handle)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manager != nil {
		s.manager.Close()
		s.cache.Purge()
	}

	manager := stream.NewManager(source, handle.HorizonStream, s.cache, s.opts)

	tpsBuffer := store.TPSBuffer(s.store, string(network))
	hourly := store.NewHourlyCounter(s.store, string(network))

	manager.SubscribeLedgers(s.ctx,
		func(l models.LedgerView) {
			s.ledgerFeed.Publish("ledger", l)
			if err := hourly.Observe(l.ClosedAt, int64(l.SuccessfulTxCount)); err != nil {
				slog.Warn("Failed to persist hourly bucket", "error", err)
			}
		},
		func(sample stream.TPSSample) {
			s.tpsFeed.Publish("tps", sample)
			if err := tpsBuffer.Append(store.TPSPoint{Timestamp: sample.ClosedAt, Value: sample.TPS}); err != nil {
				slog.Warn("Failed to persist TPS point", "error", err)
			}
		},
		func(err error) {
			slog.Warn("Ledger stream degraded", "network", network, "error", err)
		},
	)

	manager.SubscribeTransactions(s.ctx,
		func(models.TransactionView) {}, // cache invalidation is the side effect
		func(err error) {
			slog.Warn("Transaction stream degraded", "network", network, "error", err)
		},
	)

	s.manager = manager
	slog.Info("Streams bound", "network", network)
	return nil
}

// AccountOperations opens a per-account operation stream on the currently
// active network. The returned stop function tears the subscription down
// when the SSE client disconnects.
func (s *streamSet) AccountOperations(ctx context.Context, accountID string, onOperation func(models.OperationView)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager == nil {
		return nil, errors.New("streams not bound")
	}
	sub := s.manager.SubscribeAccountOperations(ctx, accountID,
		onOperation,
		func(err error) {
			slog.Warn("Account operation stream degraded", "account", accountID, "error", err)
		},
	)
	return sub.Unsubscribe, nil
}

func (s *streamSet) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager != nil {
		s.manager.Close()
	}
}
