package models

import (
	"time"

	hProtocol "github.com/stellar/go/protocols/horizon"

	"explorer/internal/format"
)

// LedgerView is the explorer's read view of a closed ledger
type LedgerView struct {
	Sequence        uint32    `json:"sequence"`
	Hash            string    `json:"hash"`
	PreviousHash    string    `json:"previous_hash,omitempty"`
	ClosedAt        time.Time `json:"closed_at"`
	ProtocolVersion int32     `json:"protocol_version"`

	SuccessfulTxCount int32 `json:"successful_tx_count"`
	FailedTxCount     int32 `json:"failed_tx_count"`
	OperationCount    int32 `json:"operation_count"`

	// Fees (formatted for UI)
	BaseFeeStroops     int32  `json:"base_fee_stroops"`
	BaseFeeXLM         string `json:"base_fee_xlm"`
	BaseReserveStroops int32  `json:"base_reserve_stroops"`
	BaseReserveXLM     string `json:"base_reserve_xlm"`

	TotalCoins string `json:"total_coins"`
	FeePool    string `json:"fee_pool"`

	PagingToken string `json:"paging_token,omitempty"`
}

// LedgerViewFromHorizon converts a Horizon ledger record into a view
func LedgerViewFromHorizon(l hProtocol.Ledger) LedgerView {
	var failed int32
	if l.FailedTransactionCount != nil {
		failed = *l.FailedTransactionCount
	}

	return LedgerView{
		Sequence:           uint32(l.Sequence),
		Hash:               l.Hash,
		PreviousHash:       l.PrevHash,
		ClosedAt:           l.ClosedAt,
		ProtocolVersion:    l.ProtocolVersion,
		SuccessfulTxCount:  l.SuccessfulTransactionCount,
		FailedTxCount:      failed,
		OperationCount:     l.OperationCount,
		BaseFeeStroops:     l.BaseFee,
		BaseFeeXLM:         format.StroopsToXLM(int64(l.BaseFee)),
		BaseReserveStroops: l.BaseReserve,
		BaseReserveXLM:     format.StroopsToXLM(int64(l.BaseReserve)),
		TotalCoins:         l.TotalCoins,
		FeePool:            l.FeePool,
		PagingToken:        l.PT,
	}
}
