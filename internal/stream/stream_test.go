package stream

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"

	"explorer/internal/models"
	"explorer/internal/queries"
	"explorer/internal/querycache"
	"explorer/internal/retry"
)

type fakeStreams struct {
	ledgerOpens  atomic.Int32
	ledgers      func(ctx context.Context, handler horizonclient.LedgerHandler) error
	transactions func(ctx context.Context, handler horizonclient.TransactionHandler) error
	operations   func(ctx context.Context, req horizonclient.OperationRequest, handler horizonclient.OperationHandler) error
}

func (f *fakeStreams) StreamLedgers(ctx context.Context, req horizonclient.LedgerRequest, handler horizonclient.LedgerHandler) error {
	f.ledgerOpens.Add(1)
	return f.ledgers(ctx, handler)
}

func (f *fakeStreams) StreamTransactions(ctx context.Context, req horizonclient.TransactionRequest, handler horizonclient.TransactionHandler) error {
	return f.transactions(ctx, handler)
}

func (f *fakeStreams) StreamOperations(ctx context.Context, req horizonclient.OperationRequest, handler horizonclient.OperationHandler) error {
	return f.operations(ctx, req, handler)
}

func newTestManager(t *testing.T, client StreamClient) (*Manager, *querycache.Cache, queries.Source) {
	t.Helper()
	cache, err := querycache.New(64, retry.NewNoRetryStrategy())
	if err != nil {
		t.Fatal(err)
	}
	src := queries.Source{Network: "testnet"}
	m := NewManager(src, client, cache, Options{
		Heartbeat:      time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	return m, cache, src
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func countQuery(key string, policy querycache.Policy, calls *int32) querycache.Query {
	return querycache.Query{
		Key:    key,
		Kind:   "test",
		Policy: policy,
		Fetch: func(ctx context.Context) (any, error) {
			atomic.AddInt32(calls, 1)
			return "refetched", nil
		},
	}
}

func TestLedgerStream_WritesLatestAndEmitsTPS(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeStreams{
		ledgers: func(ctx context.Context, handler horizonclient.LedgerHandler) error {
			handler(hProtocol.Ledger{Sequence: 100, ClosedAt: base})
			handler(hProtocol.Ledger{
				Sequence:                   101,
				ClosedAt:                   base.Add(5 * time.Second),
				SuccessfulTransactionCount: 50,
			})
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, cache, src := newTestManager(t, fake)

	ledgers := make(chan models.LedgerView, 4)
	samples := make(chan TPSSample, 4)
	sub := m.SubscribeLedgers(context.Background(),
		func(v models.LedgerView) { ledgers <- v },
		func(s TPSSample) { samples <- s },
		nil)

	<-ledgers
	second := <-ledgers
	if second.Sequence != 101 {
		t.Errorf("second pushed ledger = %d", second.Sequence)
	}

	sample := <-samples
	if sample.TPS != 10.0 || sample.LedgerSeq != 101 {
		t.Errorf("sample = %+v, expected tps 10.0 at ledger 101", sample)
	}

	// The pushed record is authoritative: the latest-ledger entry must be
	// served from cache without a fetch.
	var calls int32
	v, err := cache.Get(context.Background(), countQuery(src.LatestLedgerKey(), querycache.Latest, &calls))
	if err != nil {
		t.Fatal(err)
	}
	view, ok := v.(models.LedgerView)
	if !ok || view.Sequence != 101 {
		t.Errorf("cached latest = %v (%T)", v, v)
	}
	if calls != 0 {
		t.Errorf("expected no fetch after stream put, got %d", calls)
	}

	if sub.State() != Connected {
		t.Errorf("state = %v, expected connected after messages", sub.State())
	}

	sub.Unsubscribe()
	sub.Unsubscribe() // must be safe to repeat
	if sub.State() != Disconnected {
		t.Errorf("state = %v after unsubscribe", sub.State())
	}
}

func TestTransactionStream_InvalidatesRecentRegion(t *testing.T) {
	pushed := make(chan struct{}, 1)
	fake := &fakeStreams{
		transactions: func(ctx context.Context, handler horizonclient.TransactionHandler) error {
			handler(hProtocol.Transaction{Hash: "aa", Successful: true})
			pushed <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, cache, src := newTestManager(t, fake)

	key := src.RecentTransactionsPrefix() + "::20"
	cache.Put(key, querycache.Latest, "stale page")

	sub := m.SubscribeTransactions(context.Background(), nil, nil)
	defer sub.Unsubscribe()
	<-pushed

	var calls int32
	v, err := cache.Get(context.Background(), countQuery(key, querycache.Latest, &calls))
	if err != nil {
		t.Fatal(err)
	}
	if v != "refetched" || calls != 1 {
		t.Errorf("expected invalidated region to refetch, got v=%v calls=%d", v, calls)
	}
}

func TestAccountOperationsStream_InvalidatesSnapshotAndPages(t *testing.T) {
	const account = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

	pushed := make(chan struct{}, 1)
	fake := &fakeStreams{
		operations: func(ctx context.Context, req horizonclient.OperationRequest, handler horizonclient.OperationHandler) error {
			if req.ForAccount != account {
				t.Errorf("stream opened for %q", req.ForAccount)
			}
			handler(operations.Payment{
				Base:   operations.Base{ID: "op1", Type: "payment"},
				Amount: "5.0000000",
			})
			pushed <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, cache, src := newTestManager(t, fake)

	snapshotKey := src.AccountKey(account)
	opsKey := src.AccountPrefix(account) + ":operations::10"
	cache.Put(snapshotKey, querycache.Snapshot, "old snapshot")
	cache.Put(opsKey, querycache.Snapshot, "old ops page")

	sub := m.SubscribeAccountOperations(context.Background(), account, nil, nil)
	defer sub.Unsubscribe()
	<-pushed

	for _, key := range []string{snapshotKey, opsKey} {
		var calls int32
		if _, err := cache.Get(context.Background(), countQuery(key, querycache.Snapshot, &calls)); err != nil {
			t.Fatal(err)
		}
		if calls != 1 {
			t.Errorf("expected %s to be stale after pushed operation, fetches=%d", key, calls)
		}
	}
}

func TestReconnectsSilentlyOnBenignDisconnect(t *testing.T) {
	fake := &fakeStreams{}
	fake.ledgers = func(ctx context.Context, handler horizonclient.LedgerHandler) error {
		if fake.ledgerOpens.Load() < 3 {
			return nil // disconnect without an error payload
		}
		<-ctx.Done()
		return ctx.Err()
	}
	m, _, _ := newTestManager(t, fake)

	errs := make(chan error, 8)
	sub := m.SubscribeLedgers(context.Background(), nil, nil, func(err error) { errs <- err })
	defer sub.Unsubscribe()

	waitFor(t, "reconnects", func() bool { return fake.ledgerOpens.Load() >= 3 })

	select {
	case err := <-errs:
		t.Errorf("benign disconnect surfaced as error: %v", err)
	default:
	}
}

func TestHeartbeatSurfacesProlongedSilence(t *testing.T) {
	fake := &fakeStreams{
		ledgers: func(ctx context.Context, handler horizonclient.LedgerHandler) error {
			<-ctx.Done() // never delivers a message
			return ctx.Err()
		},
	}
	cache, err := querycache.New(16, retry.NewNoRetryStrategy())
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(queries.Source{Network: "testnet"}, fake, cache, Options{
		Heartbeat:      40 * time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})

	errs := make(chan error, 1)
	sub := m.SubscribeLedgers(context.Background(), nil, nil, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	defer sub.Unsubscribe()

	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "silent") {
			t.Errorf("unexpected heartbeat error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prolonged silence was never surfaced")
	}
}

func TestUnsubscribeReleasesManagerSlot(t *testing.T) {
	const account = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

	fake := &fakeStreams{
		operations: func(ctx context.Context, req horizonclient.OperationRequest, handler horizonclient.OperationHandler) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, _, _ := newTestManager(t, fake)

	// Per-account subscriptions come and go with SSE clients; each one must
	// release its slot or the manager grows for its whole lifetime.
	for i := 0; i < 5; i++ {
		sub := m.SubscribeAccountOperations(context.Background(), account, nil, nil)
		sub.Unsubscribe()
	}

	if n := m.tracked(); n != 0 {
		t.Errorf("manager still tracks %d subscriptions after unsubscribe", n)
	}
}

func TestManagerClose_TearsDownAllStreams(t *testing.T) {
	fake := &fakeStreams{
		ledgers: func(ctx context.Context, handler horizonclient.LedgerHandler) error {
			<-ctx.Done()
			return ctx.Err()
		},
		transactions: func(ctx context.Context, handler horizonclient.TransactionHandler) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, _, _ := newTestManager(t, fake)

	ledgerSub := m.SubscribeLedgers(context.Background(), nil, nil, nil)
	txSub := m.SubscribeTransactions(context.Background(), nil, nil)

	m.Close()

	if ledgerSub.State() != Disconnected || txSub.State() != Disconnected {
		t.Errorf("states after close: %v, %v", ledgerSub.State(), txSub.State())
	}
}

func TestTPSTracker(t *testing.T) {
	tr := NewTPSTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := tr.Observe(hProtocol.Ledger{Sequence: 1, ClosedAt: base}); ok {
		t.Error("first ledger must only seed the baseline")
	}

	sample, ok := tr.Observe(hProtocol.Ledger{
		Sequence:                   2,
		ClosedAt:                   base.Add(6 * time.Second),
		SuccessfulTransactionCount: 100,
	})
	if !ok || sample.TPS != 16.67 {
		t.Errorf("sample = %+v ok=%v, expected 16.67", sample, ok)
	}

	// Redelivery of the same sequence is not a new observation
	if _, ok := tr.Observe(hProtocol.Ledger{Sequence: 2, ClosedAt: base.Add(6 * time.Second)}); ok {
		t.Error("duplicate sequence must not emit")
	}

	// Out-of-order close times advance the baseline without emitting
	if _, ok := tr.Observe(hProtocol.Ledger{Sequence: 3, ClosedAt: base}); ok {
		t.Error("non-positive time delta must not emit")
	}

	tr.Reset()
	if _, ok := tr.Observe(hProtocol.Ledger{Sequence: 4, ClosedAt: base.Add(time.Minute)}); ok {
		t.Error("tracker must reseed after reset")
	}
}
