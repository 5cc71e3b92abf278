package queries

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stellar/stellar-rpc/protocol"

	"explorer/internal/derive"
	"explorer/internal/models"
	"explorer/internal/querycache"
)

const eventScanWindow = 10000 // ledgers to look back when listing contract events

// Contract fetches a deployed contract's instance entry over Soroban RPC
// and decodes its executable reference and instance storage.
func (s Source) Contract(contractID string) querycache.Query {
	return querycache.Query{
		Key:    s.key("contract", contractID),
		Kind:   "contract",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			return s.fetchContract(ctx, contractID)
		},
	}
}

func (s Source) fetchContract(ctx context.Context, contractID string) (models.ContractView, error) {
	view := models.ContractView{ContractID: contractID}

	instanceKey, err := contractInstanceKey(contractID)
	if err != nil {
		return view, fmt.Errorf("failed to build instance key for %s: %w", contractID, err)
	}

	resp, err := s.RPC.GetLedgerEntries(ctx, protocol.GetLedgerEntriesRequest{
		Keys: []string{instanceKey},
	})
	if err != nil {
		return view, fmt.Errorf("failed to fetch contract instance %s: %w", contractID, err)
	}
	if len(resp.Entries) == 0 {
		return view, fmt.Errorf("contract %s not found", contractID)
	}

	entry := resp.Entries[0]
	view.LastModifiedLedger = uint32(entry.LastModifiedLedger)
	view.LiveUntilLedger = entry.LiveUntilLedgerSeq
	view.TTLLedgers = derive.TTLLedgers(entry.LiveUntilLedgerSeq, uint32(resp.LatestLedger))

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(entry.DataXDR, &data); err != nil {
		return view, fmt.Errorf("failed to decode contract instance entry: %w", err)
	}
	if data.Type != xdr.LedgerEntryTypeContractData || data.ContractData == nil {
		return view, fmt.Errorf("unexpected ledger entry type %v for contract %s", data.Type, contractID)
	}

	instance := data.ContractData.Val.MustInstance()
	switch instance.Executable.Type {
	case xdr.ContractExecutableTypeContractExecutableWasm:
		hash := instance.Executable.MustWasmHash()
		view.WasmHash = hex.EncodeToString(hash[:])
		view.WasmSize = s.fetchWasmSize(ctx, hash)
	case xdr.ContractExecutableTypeContractExecutableStellarAsset:
		view.StellarAsset = true
	}

	if instance.Storage != nil {
		for _, kv := range *instance.Storage {
			view.Storage = append(view.Storage, derive.DecodeStorageEntry(kv.Key, kv.Val, "instance"))
		}
	}

	return view, nil
}

// fetchWasmSize resolves the contract-code entry for a WASM hash. Size is
// cosmetic, so lookup failures degrade to zero rather than failing the
// contract view.
func (s Source) fetchWasmSize(ctx context.Context, hash xdr.Hash) int {
	codeKey, err := xdr.MarshalBase64(xdr.LedgerKey{
		Type:         xdr.LedgerEntryTypeContractCode,
		ContractCode: &xdr.LedgerKeyContractCode{Hash: hash},
	})
	if err != nil {
		return 0
	}

	resp, err := s.RPC.GetLedgerEntries(ctx, protocol.GetLedgerEntriesRequest{
		Keys: []string{codeKey},
	})
	if err != nil || len(resp.Entries) == 0 {
		return 0
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(resp.Entries[0].DataXDR, &data); err != nil {
		return 0
	}
	if data.Type != xdr.LedgerEntryTypeContractCode || data.ContractCode == nil {
		return 0
	}
	return len(data.ContractCode.Code)
}

// ContractEvents lists recent events emitted by one contract, scanning a
// bounded window back from the latest ledger.
func (s Source) ContractEvents(contractID, cursor string, limit uint) querycache.Query {
	return querycache.Query{
		Key:    s.key("contract", contractID, "events", cursor, limit),
		Kind:   "event",
		Policy: querycache.Snapshot,
		Fetch: func(ctx context.Context) (any, error) {
			latest, err := s.RPC.GetLatestLedger(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve latest ledger: %w", err)
			}
			start := int64(latest.Sequence) - eventScanWindow
			if start < 1 {
				start = 1
			}

			req := protocol.GetEventsRequest{
				StartLedger: uint32(start),
				Filters: []protocol.EventFilter{
					{ContractIDs: []string{contractID}},
				},
				Pagination: &protocol.PaginationOptions{Limit: limit},
			}
			if cursor != "" {
				parsed, err := protocol.ParseCursor(cursor)
				if err != nil {
					return nil, fmt.Errorf("invalid events cursor %q: %w", cursor, err)
				}
				// A cursor supersedes the start ledger
				req.StartLedger = 0
				req.Pagination.Cursor = &parsed
			}

			resp, err := s.RPC.GetEvents(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch events for contract %s: %w", contractID, err)
			}

			out := models.Page[models.ContractEventView]{
				Records: make([]models.ContractEventView, 0, len(resp.Events)),
				Cursor:  resp.Cursor,
			}
			for _, ev := range resp.Events {
				out.Records = append(out.Records, eventView(ev))
			}
			return out, nil
		},
	}
}

// RPCLatestLedger fetches the RPC node's view of the chain tip, used by
// the health endpoint to cross-check Horizon.
func (s Source) RPCLatestLedger() querycache.Query {
	return querycache.Query{
		Key:    s.key("rpc", "latest"),
		Kind:   "ledger",
		Policy: querycache.Latest,
		Fetch: func(ctx context.Context) (any, error) {
			resp, err := s.RPC.GetLatestLedger(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch latest ledger over rpc: %w", err)
			}
			return resp, nil
		},
	}
}

func eventView(ev protocol.EventInfo) models.ContractEventView {
	view := models.ContractEventView{
		ID:           ev.ID,
		Type:         ev.EventType,
		ContractID:   ev.ContractID,
		Ledger:       ev.Ledger,
		ClosedAt:     ev.LedgerClosedAt,
		TxHash:       ev.TransactionHash,
		InSuccessful: ev.InSuccessfulContractCall,
	}
	for _, topic := range ev.TopicXDR {
		var val xdr.ScVal
		if err := xdr.SafeUnmarshalBase64(topic, &val); err != nil {
			view.Topics = append(view.Topics, topic)
			continue
		}
		view.Topics = append(view.Topics, derive.ScValToInterface(val))
	}
	if ev.ValueXDR != "" {
		var val xdr.ScVal
		if err := xdr.SafeUnmarshalBase64(ev.ValueXDR, &val); err == nil {
			view.Value = derive.ScValToInterface(val)
		} else {
			view.Value = ev.ValueXDR
		}
	}
	return view
}

// contractInstanceKey builds the base64 ledger key addressing a contract's
// instance entry. Instance entries always live in persistent storage.
func contractInstanceKey(contractID string) (string, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return "", fmt.Errorf("invalid contract id: %w", err)
	}
	var cid xdr.ContractId
	copy(cid[:], raw)

	return xdr.MarshalBase64(xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract: xdr.ScAddress{
				Type:       xdr.ScAddressTypeScAddressTypeContract,
				ContractId: &cid,
			},
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance},
			Durability: xdr.ContractDataDurabilityPersistent,
		},
	})
}
