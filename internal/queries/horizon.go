package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"

	"explorer/internal/derive"
	"explorer/internal/models"
	"explorer/internal/querycache"
)

// Ledger fetches one closed ledger by sequence.
func (s Source) Ledger(seq uint32) querycache.Query {
	return querycache.Query{
		Key:    s.key("ledger", seq),
		Kind:   "ledger",
		Policy: querycache.Immutable,
		Fetch: func(ctx context.Context) (any, error) {
			l, err := s.Horizon.LedgerDetail(seq)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch ledger %d: %w", seq, err)
			}
			return models.LedgerViewFromHorizon(l), nil
		},
	}
}

// LatestLedger fetches the most recently closed ledger. The ledger stream
// overwrites this entry directly, so polling only covers stream gaps.
func (s Source) LatestLedger() querycache.Query {
	return querycache.Query{
		Key:    s.LatestLedgerKey(),
		Kind:   "ledger",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Ledgers(horizonclient.LedgerRequest{
				Order: horizonclient.OrderDesc,
				Limit: 1,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch latest ledger: %w", err)
			}
			if len(page.Embedded.Records) == 0 {
				return nil, fmt.Errorf("ledger feed returned no records")
			}
			return models.LedgerViewFromHorizon(page.Embedded.Records[0]), nil
		},
	}
}

// LatestLedgerKey is the cache key the ledger stream writes through.
func (s Source) LatestLedgerKey() string {
	return s.key("ledger", "latest")
}

// RecentLedgers fetches a descending page of closed ledgers.
func (s Source) RecentLedgers(cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("ledgers", "recent", cursor, limit),
		Kind:   "ledger",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Ledgers(horizonclient.LedgerRequest{
				Order:  horizonclient.OrderDesc,
				Cursor: cursor,
				Limit:  limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch recent ledgers: %w", err)
			}
			out := models.Page[models.LedgerView]{Records: make([]models.LedgerView, 0, len(page.Embedded.Records))}
			for _, l := range page.Embedded.Records {
				out.Records = append(out.Records, models.LedgerViewFromHorizon(l))
				out.Cursor = l.PagingToken()
			}
			return out, nil
		},
	}
}

// Transaction fetches one transaction by hash.
func (s Source) Transaction(hash string) querycache.Query {
	return querycache.Query{
		Key:    s.key("tx", hash),
		Kind:   "transaction",
		Policy: querycache.Immutable,
		Fetch: func(ctx context.Context) (any, error) {
			tx, err := s.Horizon.TransactionDetail(hash)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch transaction %s: %w", hash, err)
			}
			return models.TransactionViewFromHorizon(tx), nil
		},
	}
}

// RecentTransactions fetches a descending page of network transactions,
// failed ones included.
func (s Source) RecentTransactions(cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("txs", "recent", cursor, limit),
		Kind:   "transaction",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Transactions(horizonclient.TransactionRequest{
				Order:         horizonclient.OrderDesc,
				Cursor:        cursor,
				Limit:         limit,
				IncludeFailed: true,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch recent transactions: %w", err)
			}
			return transactionPage(page), nil
		},
	}
}

// RecentTransactionsPrefix is the cache region the transaction stream
// invalidates when a new transaction lands.
func (s Source) RecentTransactionsPrefix() string {
	return s.key("txs", "recent")
}

// TransactionOperations fetches the operations of one transaction.
func (s Source) TransactionOperations(hash, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("tx", hash, "operations", cursor, limit),
		Kind:   "operation",
		Policy: querycache.Immutable,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Operations(horizonclient.OperationRequest{
				ForTransaction: hash,
				Cursor:         cursor,
				Limit:          limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch operations for transaction %s: %w", hash, err)
			}
			out := models.Page[models.OperationView]{Records: make([]models.OperationView, 0, len(page.Embedded.Records))}
			for _, op := range page.Embedded.Records {
				out.Records = append(out.Records, models.OperationViewFromHorizon(op))
				out.Cursor = op.PagingToken()
			}
			return out, nil
		},
	}
}

// TransactionEffects fetches the effects of one transaction.
func (s Source) TransactionEffects(hash, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("tx", hash, "effects", cursor, limit),
		Kind:   "effect",
		Policy: querycache.Immutable,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Effects(horizonclient.EffectRequest{
				ForTransaction: hash,
				Cursor:         cursor,
				Limit:          limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch effects for transaction %s: %w", hash, err)
			}
			out := models.Page[models.EffectView]{Records: make([]models.EffectView, 0, len(page.Embedded.Records))}
			for _, e := range page.Embedded.Records {
				out.Records = append(out.Records, models.EffectViewFromHorizon(e))
				out.Cursor = e.PagingToken()
			}
			return out, nil
		},
	}
}

// Account fetches an account snapshot.
func (s Source) Account(accountID string) querycache.Query {
	return querycache.Query{
		Key:    s.AccountKey(accountID),
		Kind:   "account",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			a, err := s.Horizon.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch account %s: %w", accountID, err)
			}
			return models.AccountViewFromHorizon(a), nil
		},
	}
}

// AccountKey is the snapshot cache key the account-activity stream
// invalidates.
func (s Source) AccountKey(accountID string) string {
	return s.key("account", accountID)
}

// AccountPrefix covers the snapshot plus every subresource page for one
// account.
func (s Source) AccountPrefix(accountID string) string {
	return s.key("account", accountID)
}

// AccountTransactions fetches a descending page of an account's transactions.
func (s Source) AccountTransactions(accountID, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("account", accountID, "txs", cursor, limit),
		Kind:   "transaction",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Transactions(horizonclient.TransactionRequest{
				ForAccount:    accountID,
				Order:         horizonclient.OrderDesc,
				Cursor:        cursor,
				Limit:         limit,
				IncludeFailed: true,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch transactions for account %s: %w", accountID, err)
			}
			return transactionPage(page), nil
		},
	}
}

// AccountOperations fetches a descending page of an account's operations.
func (s Source) AccountOperations(accountID, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("account", accountID, "operations", cursor, limit),
		Kind:   "operation",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Operations(horizonclient.OperationRequest{
				ForAccount: accountID,
				Order:      horizonclient.OrderDesc,
				Cursor:     cursor,
				Limit:      limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch operations for account %s: %w", accountID, err)
			}
			out := models.Page[models.OperationView]{Records: make([]models.OperationView, 0, len(page.Embedded.Records))}
			for _, op := range page.Embedded.Records {
				out.Records = append(out.Records, models.OperationViewFromHorizon(op))
				out.Cursor = op.PagingToken()
			}
			return out, nil
		},
	}
}

// AccountEffects fetches a descending page of an account's effects.
func (s Source) AccountEffects(accountID, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("account", accountID, "effects", cursor, limit),
		Kind:   "effect",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Effects(horizonclient.EffectRequest{
				ForAccount: accountID,
				Order:      horizonclient.OrderDesc,
				Cursor:     cursor,
				Limit:      limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch effects for account %s: %w", accountID, err)
			}
			out := models.Page[models.EffectView]{Records: make([]models.EffectView, 0, len(page.Embedded.Records))}
			for _, e := range page.Embedded.Records {
				out.Records = append(out.Records, models.EffectViewFromHorizon(e))
				out.Cursor = e.PagingToken()
			}
			return out, nil
		},
	}
}

// Assets searches issued assets by code and optionally issuer.
func (s Source) Assets(code, issuer, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("assets", code, issuer, cursor, limit),
		Kind:   "asset",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			page, err := s.Horizon.Assets(horizonclient.AssetRequest{
				ForAssetCode:   code,
				ForAssetIssuer: issuer,
				Cursor:         cursor,
				Limit:          limit,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to search assets %s: %w", code, err)
			}
			out := models.Page[models.AssetView]{Records: make([]models.AssetView, 0, len(page.Embedded.Records))}
			for _, a := range page.Embedded.Records {
				out.Records = append(out.Records, models.AssetViewFromHorizon(a))
				out.Cursor = a.PagingToken()
			}
			return out, nil
		},
	}
}

// Orderbook fetches the current order book for a pair and derives mid
// price and spread.
func (s Source) Orderbook(selling, buying Asset) querycache.Query {
	return querycache.Query{
		Key:    s.key("orderbook", selling.key(), buying.key()),
		Kind:   "orderbook",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			book, err := s.Horizon.OrderBook(horizonclient.OrderBookRequest{
				SellingAssetType:   selling.horizonType(),
				SellingAssetCode:   selling.Code,
				SellingAssetIssuer: selling.Issuer,
				BuyingAssetType:    buying.horizonType(),
				BuyingAssetCode:    buying.Code,
				BuyingAssetIssuer:  buying.Issuer,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch orderbook %s/%s: %w", selling.key(), buying.key(), err)
			}
			return derive.ComputeOrderbookStats(book), nil
		},
	}
}

// TradeStats fetches hourly trade aggregations over the trailing 24 hours
// and derives volume, high/low and price change for the pair.
func (s Source) TradeStats(base, counter Asset) querycache.Query {
	return querycache.Query{
		Key:    s.key("trades", base.key(), counter.key()),
		Kind:   "trades",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			now := time.Now()
			page, err := s.Horizon.TradeAggregations(horizonclient.TradeAggregationRequest{
				StartTime:          now.Add(-24 * time.Hour),
				EndTime:            now,
				Resolution:         time.Hour,
				BaseAssetType:      base.horizonType(),
				BaseAssetCode:      base.Code,
				BaseAssetIssuer:    base.Issuer,
				CounterAssetType:   counter.horizonType(),
				CounterAssetCode:   counter.Code,
				CounterAssetIssuer: counter.Issuer,
				Order:              horizonclient.OrderAsc,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch trade aggregations %s/%s: %w", base.key(), counter.key(), err)
			}
			return derive.ComputeTradeStats(page.Embedded.Records), nil
		},
	}
}

// FeeStats fetches current network fee conditions.
func (s Source) FeeStats() querycache.Query {
	return querycache.Query{
		Key:    s.key("fees"),
		Kind:   "fees",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			fs, err := s.Horizon.FeeStats()
			if err != nil {
				return nil, fmt.Errorf("failed to fetch fee stats: %w", err)
			}
			return models.FeeStatsView{
				LastLedger:          fs.LastLedger,
				LastLedgerBaseFee:   fs.LastLedgerBaseFee,
				LedgerCapacityUsage: fs.LedgerCapacityUsage,
				FeeChargedP50:       fs.FeeCharged.P50,
				FeeChargedP90:       fs.FeeCharged.P90,
				FeeChargedMax:       fs.FeeCharged.Max,
				MaxFeeP50:           fs.MaxFee.P50,
			}, nil
		},
	}
}

func transactionPage(page hProtocol.TransactionsPage) models.Page[models.TransactionView] {
	out := models.Page[models.TransactionView]{Records: make([]models.TransactionView, 0, len(page.Embedded.Records))}
	for _, tx := range page.Embedded.Records {
		out.Records = append(out.Records, models.TransactionViewFromHorizon(tx))
		out.Cursor = tx.PagingToken()
	}
	return out
}
