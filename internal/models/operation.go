package models

import (
	"encoding/json"
	"time"

	"github.com/stellar/go/protocols/horizon/operations"
)

// OperationView is the explorer's read view of one operation. The Details
// map carries the fields specific to the operation's type discriminant.
type OperationView struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	SourceAccount string         `json:"source_account,omitempty"`
	TxHash        string         `json:"tx_hash"`
	Successful    bool           `json:"successful"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	PagingToken   string         `json:"paging_token,omitempty"`
}

// OperationViewFromHorizon converts an operation record into a view,
// matching on the concrete type for the operation kinds the UI renders
// specially. Unmatched kinds degrade to the record's raw JSON fields.
func OperationViewFromHorizon(op operations.Operation) OperationView {
	view := OperationView{
		ID:          op.GetID(),
		Type:        op.GetType(),
		TxHash:      op.GetTransactionHash(),
		Successful:  op.IsTransactionSuccessful(),
		PagingToken: op.PagingToken(),
	}

	switch o := op.(type) {
	case operations.Payment:
		view.SourceAccount = o.SourceAccount
		view.CreatedAt = o.LedgerCloseTime
		view.Details = map[string]any{
			"from":         o.From,
			"to":           o.To,
			"amount":       o.Amount,
			"asset_type":   o.Asset.Type,
			"asset_code":   o.Asset.Code,
			"asset_issuer": o.Asset.Issuer,
		}
	case operations.CreateAccount:
		view.SourceAccount = o.SourceAccount
		view.CreatedAt = o.LedgerCloseTime
		view.Details = map[string]any{
			"account":          o.Account,
			"funder":           o.Funder,
			"starting_balance": o.StartingBalance,
		}
	case operations.ChangeTrust:
		view.SourceAccount = o.SourceAccount
		view.CreatedAt = o.LedgerCloseTime
		view.Details = map[string]any{
			"trustor":      o.Trustor,
			"asset_code":   o.Asset.Code,
			"asset_issuer": o.Asset.Issuer,
			"limit":        o.Limit,
		}
	case operations.InvokeHostFunction:
		view.SourceAccount = o.SourceAccount
		view.CreatedAt = o.LedgerCloseTime
		view.Details = map[string]any{
			"function": o.Function,
			"address":  o.Address,
		}
	default:
		view.Details = rawFields(op)
	}

	return view
}

// rawFields round-trips a record through JSON so type-specific fields are
// preserved for display even when we have no dedicated mapping.
func rawFields(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	delete(fields, "_links")
	return fields
}
