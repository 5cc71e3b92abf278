// Package stream maintains long-lived Horizon subscriptions and translates
// each pushed record into a cache mutation. One Manager serves one network;
// switching networks means closing the old manager and building a new one,
// so records from different networks never mix in the same cache region.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"

	"explorer/internal/metrics"
	"explorer/internal/models"
	"explorer/internal/queries"
	"explorer/internal/querycache"
)

// State is the lifecycle of one subscription.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// StreamClient is the subset of the Horizon SDK client the manager uses.
// *horizonclient.Client satisfies it.
type StreamClient interface {
	StreamLedgers(ctx context.Context, request horizonclient.LedgerRequest, handler horizonclient.LedgerHandler) error
	StreamTransactions(ctx context.Context, request horizonclient.TransactionRequest, handler horizonclient.TransactionHandler) error
	StreamOperations(ctx context.Context, request horizonclient.OperationRequest, handler horizonclient.OperationHandler) error
}

// Options tunes reconnect pacing and the liveness watchdog.
type Options struct {
	// Heartbeat is how long a subscription may stay silent before the
	// silence is surfaced as a real error instead of an indefinite
	// "connecting". A transport-level disconnect carries no error payload,
	// so silence is the only signal we get.
	Heartbeat time.Duration

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultOptions matches ledger cadence: ledgers close every ~5s, so 90s of
// silence means the transport is gone, not slow.
func DefaultOptions() Options {
	return Options{
		Heartbeat:      90 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Manager owns every subscription for one network.
type Manager struct {
	source queries.Source
	client StreamClient
	cache  *querycache.Cache
	opts   Options
	tps    *TPSTracker

	mu   sync.Mutex
	subs []*Subscription
}

// NewManager creates a stream manager for one network's clients.
func NewManager(source queries.Source, client StreamClient, cache *querycache.Cache, opts Options) *Manager {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultOptions().Heartbeat
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultOptions().InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = DefaultOptions().MaxBackoff
	}
	return &Manager{
		source: source,
		client: client,
		cache:  cache,
		opts:   opts,
		tps:    NewTPSTracker(),
	}
}

// Subscription is one live stream. Unsubscribe is idempotent and blocks
// until no further messages will be delivered.
type Subscription struct {
	kind string

	state     atomic.Int32
	lastMsg   atomic.Int64
	tripped   atomic.Bool
	received  atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	onError func(error)

	errMu   sync.Mutex
	lastErr error
}

// State returns the subscription's current lifecycle state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Err returns the most recent explicit error, cleared by the next message.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Unsubscribe tears the stream down. Safe to call multiple times; after it
// returns no handler will fire again.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// touch records message arrival: the subscription is connected and alive.
func (s *Subscription) touch() {
	s.lastMsg.Store(time.Now().UnixNano())
	s.received.Add(1)
	s.state.Store(int32(Connected))
	s.errMu.Lock()
	s.lastErr = nil
	s.errMu.Unlock()
	metrics.StreamMessages.WithLabelValues(s.kind).Inc()
}

func (s *Subscription) reportError(err error) {
	metrics.StreamErrors.WithLabelValues(s.kind).Inc()
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
	slog.Warn("Stream error", "stream", s.kind, "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}

// SubscribeLedgers opens the ledger stream. Each pushed ledger is
// authoritative: it overwrites the latest-ledger cache entry directly,
// updates gauges, and feeds the TPS tracker. onLedger and onTPS fan pushed
// records out to SSE clients; either may be nil.
func (m *Manager) SubscribeLedgers(ctx context.Context, onLedger func(models.LedgerView), onTPS func(TPSSample), onError func(error)) *Subscription {
	sub, ctx := m.newSubscription(ctx, "ledger", onError)
	open := func(ctx context.Context) error {
		return m.client.StreamLedgers(ctx, horizonclient.LedgerRequest{Cursor: "now"}, func(l hProtocol.Ledger) {
			sub.touch()
			view := models.LedgerViewFromHorizon(l)
			m.cache.Put(m.source.LatestLedgerKey(), querycache.Latest, view)
			metrics.LatestLedger.Set(float64(view.Sequence))

			if sample, ok := m.tps.Observe(l); ok {
				metrics.CurrentTPS.Set(sample.TPS)
				if onTPS != nil {
					onTPS(sample)
				}
			}
			if onLedger != nil {
				onLedger(view)
			}
		})
	}
	go m.run(ctx, sub, open)
	return sub
}

// SubscribeTransactions opens the network-wide transaction stream. Recent
// transactions is a list view with its own ordering contract, so a pushed
// record invalidates the region instead of being written into it.
func (m *Manager) SubscribeTransactions(ctx context.Context, onTransaction func(models.TransactionView), onError func(error)) *Subscription {
	sub, ctx := m.newSubscription(ctx, "transaction", onError)
	open := func(ctx context.Context) error {
		return m.client.StreamTransactions(ctx, horizonclient.TransactionRequest{Cursor: "now"}, func(tx hProtocol.Transaction) {
			sub.touch()
			m.cache.InvalidatePrefix(m.source.RecentTransactionsPrefix())
			if onTransaction != nil {
				onTransaction(models.TransactionViewFromHorizon(tx))
			}
		})
	}
	go m.run(ctx, sub, open)
	return sub
}

// SubscribeAccountOperations opens the operation stream for one account. A
// pushed operation may change balances, so the account snapshot is
// invalidated along with its operation pages.
func (m *Manager) SubscribeAccountOperations(ctx context.Context, accountID string, onOperation func(models.OperationView), onError func(error)) *Subscription {
	sub, ctx := m.newSubscription(ctx, "account-operations", onError)
	open := func(ctx context.Context) error {
		return m.client.StreamOperations(ctx, horizonclient.OperationRequest{ForAccount: accountID, Cursor: "now"}, func(op operations.Operation) {
			sub.touch()
			m.cache.InvalidatePrefix(m.source.AccountPrefix(accountID))
			if onOperation != nil {
				onOperation(models.OperationViewFromHorizon(op))
			}
		})
	}
	go m.run(ctx, sub, open)
	return sub
}

// Close unsubscribes everything. Called on shutdown and on network switch.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*Subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// TPS returns the manager's ledger-fed TPS tracker.
func (m *Manager) TPS() *TPSTracker {
	return m.tps
}

func (m *Manager) newSubscription(ctx context.Context, kind string, onError func(error)) (*Subscription, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		kind:    kind,
		cancel:  cancel,
		done:    make(chan struct{}),
		onError: onError,
	}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub, ctx
}

// forget drops a finished subscription so churned subscriptions do not
// accumulate for the manager's lifetime.
func (m *Manager) forget(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == sub {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

// tracked is the number of live subscriptions.
func (m *Manager) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// run drives the reconnect loop. A disconnect without an error payload is
// treated as reconnect-in-progress, never surfaced to the caller; explicit
// errors invoke the error callback but keep the loop alive. Only
// Unsubscribe (or parent context cancellation) reaches Disconnected.
func (m *Manager) run(ctx context.Context, sub *Subscription, open func(context.Context) error) {
	defer close(sub.done)
	defer sub.state.Store(int32(Disconnected))
	defer m.forget(sub)

	backoff := m.opts.InitialBackoff
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		sub.state.Store(int32(Connecting))
		if !first {
			metrics.StreamReconnects.WithLabelValues(sub.kind).Inc()
		}
		first = false

		before := sub.received.Load()
		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		sub.lastMsg.Store(time.Now().UnixNano())

		watchdogDone := make(chan struct{})
		go m.watch(attemptCtx, sub, cancelAttempt, watchdogDone)

		err := open(attemptCtx)
		cancelAttempt()
		<-watchdogDone

		if ctx.Err() != nil {
			return
		}

		switch {
		case sub.tripped.CompareAndSwap(true, false):
			sub.reportError(fmt.Errorf("%s stream silent for %s, reconnecting", sub.kind, m.opts.Heartbeat))
		case err != nil:
			sub.reportError(fmt.Errorf("%s stream failed: %w", sub.kind, err))
		default:
			slog.Debug("Stream disconnected, reconnecting", "stream", sub.kind)
		}

		if sub.received.Load() > before {
			backoff = m.opts.InitialBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > m.opts.MaxBackoff {
			backoff = m.opts.MaxBackoff
		}
	}
}

// watch cancels the current attempt when the stream has been silent past
// the heartbeat window, so prolonged silence becomes a visible error
// instead of an indefinite "connecting".
func (m *Manager) watch(ctx context.Context, sub *Subscription, cancelAttempt context.CancelFunc, done chan struct{}) {
	defer close(done)

	interval := m.opts.Heartbeat / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, sub.lastMsg.Load())
			if time.Since(last) > m.opts.Heartbeat {
				sub.tripped.Store(true)
				cancelAttempt()
				return
			}
		}
	}
}
