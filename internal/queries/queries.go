// Package queries maps (network, entity kind, params) pairs to cacheable
// fetch descriptors. Keys are deterministic so repeated requests for the
// same entity share cache state, and each entity kind carries its own
// freshness policy.
package queries

import (
	"context"
	"fmt"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/effects"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/stellar-rpc/protocol"

	"explorer/internal/netclient"
)

// HorizonClient is the subset of the Horizon SDK client the factory uses.
// *horizonclient.Client satisfies it; tests substitute fakes.
type HorizonClient interface {
	LedgerDetail(sequence uint32) (hProtocol.Ledger, error)
	Ledgers(request horizonclient.LedgerRequest) (hProtocol.LedgersPage, error)
	TransactionDetail(txHash string) (hProtocol.Transaction, error)
	Transactions(request horizonclient.TransactionRequest) (hProtocol.TransactionsPage, error)
	Operations(request horizonclient.OperationRequest) (operations.OperationsPage, error)
	Effects(request horizonclient.EffectRequest) (effects.EffectsPage, error)
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	Assets(request horizonclient.AssetRequest) (hProtocol.AssetsPage, error)
	OrderBook(request horizonclient.OrderBookRequest) (hProtocol.OrderBookSummary, error)
	TradeAggregations(request horizonclient.TradeAggregationRequest) (hProtocol.TradeAggregationsPage, error)
	FeeStats() (hProtocol.FeeStats, error)
}

// RPCClient is the subset of the Soroban RPC client the factory uses.
type RPCClient interface {
	GetLatestLedger(ctx context.Context) (protocol.GetLatestLedgerResponse, error)
	GetLedgerEntries(ctx context.Context, request protocol.GetLedgerEntriesRequest) (protocol.GetLedgerEntriesResponse, error)
	GetEvents(ctx context.Context, request protocol.GetEventsRequest) (protocol.GetEventsResponse, error)
}

// Source binds the factory to one network's clients. Identifier validation
// happens at the call site (the HTTP handlers); the factory assumes its
// inputs are well-formed.
type Source struct {
	Network string
	Horizon HorizonClient
	RPC     RPCClient
}

// NewSource builds a Source from a memoized network handle.
func NewSource(h *netclient.Handle) Source {
	return Source{
		Network: string(h.Descriptor.Name),
		Horizon: h.Horizon,
		RPC:     h.RPC,
	}
}

// Asset identifies an asset for market queries. An empty issuer means the
// native asset.
type Asset struct {
	Code   string
	Issuer string
}

// Native is the distinguished native asset
var Native = Asset{Code: "XLM"}

// IsNative reports whether a refers to the native asset.
func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

func (a Asset) horizonType() horizonclient.AssetType {
	switch {
	case a.IsNative():
		return horizonclient.AssetTypeNative
	case len(a.Code) <= 4:
		return horizonclient.AssetType4
	default:
		return horizonclient.AssetType12
	}
}

func (a Asset) key() string {
	if a.IsNative() {
		return "native"
	}
	return a.Code + ":" + a.Issuer
}

func (s Source) key(parts ...any) string {
	key := s.Network
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}
