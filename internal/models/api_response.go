package models

// Page wraps a list response with the cursor needed to fetch the next one.
type Page[T any] struct {
	Records []T    `json:"records"`
	Cursor  string `json:"cursor,omitempty"`
}

// SearchResult is the outcome of classifying a free-text query
type SearchResult struct {
	Query string `json:"query"`
	Type  string `json:"type"`
}

// FeeStatsView summarizes current network fee conditions
type FeeStatsView struct {
	LastLedger          uint32  `json:"last_ledger"`
	LastLedgerBaseFee   int64   `json:"last_ledger_base_fee"`
	LedgerCapacityUsage float64 `json:"ledger_capacity_usage"`
	FeeChargedP50       int64   `json:"fee_charged_p50"`
	FeeChargedP90       int64   `json:"fee_charged_p90"`
	FeeChargedMax       int64   `json:"fee_charged_max"`
	MaxFeeP50           int64   `json:"max_fee_p50"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
