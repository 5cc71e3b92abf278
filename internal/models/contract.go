package models

// ContractView is the explorer's read view of a deployed Soroban contract:
// its WASM executable reference plus decoded instance storage.
type ContractView struct {
	ContractID string `json:"contract_id"`

	// Executable
	WasmHash     string `json:"wasm_hash,omitempty"`
	WasmSize     int    `json:"wasm_size,omitempty"`
	StellarAsset bool   `json:"stellar_asset,omitempty"`

	LastModifiedLedger uint32  `json:"last_modified_ledger,omitempty"`
	LiveUntilLedger    *uint32 `json:"live_until_ledger,omitempty"`
	TTLLedgers         *int64  `json:"ttl_ledgers,omitempty"`

	Storage []StorageEntryView `json:"storage,omitempty"`
}

// StorageEntryView is one decoded instance-storage entry. Key and Value
// hold the native decoding; RawKey/RawValue keep the base64 XDR so a
// failed decode still renders.
type StorageEntryView struct {
	Key        any    `json:"key"`
	KeyType    string `json:"key_type"`
	Value      any    `json:"value"`
	ValueType  string `json:"value_type"`
	RawKey     string `json:"raw_key,omitempty"`
	RawValue   string `json:"raw_value,omitempty"`
	Durability string `json:"durability"`
}

// ContractEventView is one emitted contract event
type ContractEventView struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	ContractID   string `json:"contract_id"`
	Ledger       int32  `json:"ledger"`
	ClosedAt     string `json:"closed_at"`
	TxHash       string `json:"tx_hash"`
	InSuccessful bool   `json:"in_successful_call"`
	Topics       []any  `json:"topics,omitempty"`
	Value        any    `json:"value,omitempty"`
}
