package models

import (
	"time"

	hProtocol "github.com/stellar/go/protocols/horizon"

	"explorer/internal/format"
)

// TransactionView is the explorer's read view of a transaction.
// Envelope and result XDR stay opaque; the UI renders them verbatim.
type TransactionView struct {
	Hash       string    `json:"hash"`
	Successful bool      `json:"successful"`
	Ledger     int32     `json:"ledger"`
	CreatedAt  time.Time `json:"created_at"`

	SourceAccount string `json:"source_account"`

	FeeChargedStroops int64  `json:"fee_charged_stroops"`
	FeeChargedXLM     string `json:"fee_charged_xlm"`
	MaxFeeStroops     int64  `json:"max_fee_stroops"`

	OperationCount int32  `json:"operation_count"`
	MemoType       string `json:"memo_type"`
	Memo           string `json:"memo,omitempty"`

	EnvelopeXDR string `json:"envelope_xdr,omitempty"`
	ResultXDR   string `json:"result_xdr,omitempty"`

	PagingToken string `json:"paging_token,omitempty"`
}

// TransactionViewFromHorizon converts a Horizon transaction record into a view
func TransactionViewFromHorizon(tx hProtocol.Transaction) TransactionView {
	return TransactionView{
		Hash:              tx.Hash,
		Successful:        tx.Successful,
		Ledger:            tx.Ledger,
		CreatedAt:         tx.LedgerCloseTime,
		SourceAccount:     tx.Account,
		FeeChargedStroops: tx.FeeCharged,
		FeeChargedXLM:     format.StroopsToXLM(tx.FeeCharged),
		MaxFeeStroops:     tx.MaxFee,
		OperationCount:    tx.OperationCount,
		MemoType:          tx.MemoType,
		Memo:              tx.Memo,
		EnvelopeXDR:       tx.EnvelopeXdr,
		ResultXDR:         tx.ResultXdr,
		PagingToken:       tx.PT,
	}
}
