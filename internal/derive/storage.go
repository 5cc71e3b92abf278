package derive

import (
	"encoding/hex"
	"fmt"

	"github.com/stellar/go/xdr"

	"explorer/internal/models"
)

// DecodeStorageEntry converts a typed contract-storage key/value pair into
// a renderable view. Decoding never fails: if native conversion panics or
// errors the entry degrades to its raw base64 XDR form.
func DecodeStorageEntry(key, val xdr.ScVal, durability string) models.StorageEntryView {
	entry := models.StorageEntryView{
		KeyType:    key.Type.String(),
		ValueType:  val.Type.String(),
		Durability: durability,
	}

	entry.RawKey = safeMarshalBase64(key)
	entry.RawValue = safeMarshalBase64(val)

	entry.Key = decodeOrRaw(key, entry.RawKey)
	entry.Value = decodeOrRaw(val, entry.RawValue)
	return entry
}

// safeMarshalBase64 encodes an ScVal, absorbing the panics the XDR encoder
// raises on values with unset union arms. Unencodable values yield "".
func safeMarshalBase64(val xdr.ScVal) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
		}
	}()
	raw, err := xdr.MarshalBase64(val)
	if err != nil {
		return ""
	}
	return raw
}

// decodeOrRaw attempts a native conversion and falls back to the raw
// encoded representation if conversion panics.
func decodeOrRaw(val xdr.ScVal, raw string) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = raw
		}
	}()
	return ScValToInterface(val)
}

// TTLLedgers is the remaining lifetime of a storage entry in ledgers, or
// nil when the entry carries no live-until value.
func TTLLedgers(liveUntil *uint32, currentLedger uint32) *int64 {
	if liveUntil == nil {
		return nil
	}
	ttl := int64(*liveUntil) - int64(currentLedger)
	return &ttl
}

// ScValToInterface converts an ScVal to a Go value for JSON serialization.
// Vecs and maps recurse; large integers carry both parts and a hex form.
func ScValToInterface(val xdr.ScVal) interface{} {
	switch val.Type {
	case xdr.ScValTypeScvBool:
		return val.MustB()
	case xdr.ScValTypeScvVoid:
		return nil
	case xdr.ScValTypeScvU32:
		return val.MustU32()
	case xdr.ScValTypeScvI32:
		return val.MustI32()
	case xdr.ScValTypeScvU64:
		return val.MustU64()
	case xdr.ScValTypeScvI64:
		return val.MustI64()
	case xdr.ScValTypeScvTimepoint:
		return uint64(val.MustTimepoint())
	case xdr.ScValTypeScvDuration:
		return uint64(val.MustDuration())
	case xdr.ScValTypeScvU128:
		u128 := val.MustU128()
		return map[string]interface{}{
			"hi":  uint64(u128.Hi),
			"lo":  uint64(u128.Lo),
			"hex": fmt.Sprintf("%016x%016x", u128.Hi, u128.Lo),
		}
	case xdr.ScValTypeScvI128:
		i128 := val.MustI128()
		return map[string]interface{}{
			"hi":  int64(i128.Hi),
			"lo":  uint64(i128.Lo),
			"hex": fmt.Sprintf("%016x%016x", i128.Hi, i128.Lo),
		}
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvAddress:
		addr := val.MustAddress()
		str, _ := addr.String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	case xdr.ScValTypeScvVec:
		vec := *val.MustVec()
		result := make([]interface{}, len(vec))
		for i, element := range vec {
			result[i] = ScValToInterface(element)
		}
		return result
	case xdr.ScValTypeScvMap:
		scMap := *val.MustMap()
		result := make(map[string]interface{})
		for _, entry := range scMap {
			// Keys are typically symbols or strings
			result[scValKeyString(entry.Key)] = ScValToInterface(entry.Val)
		}
		return result
	default:
		return val.Type.String()
	}
}

// scValKeyString renders a map key as a string
func scValKeyString(val xdr.ScVal) string {
	switch val.Type {
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvU32:
		return fmt.Sprintf("%d", val.MustU32())
	case xdr.ScValTypeScvI32:
		return fmt.Sprintf("%d", val.MustI32())
	case xdr.ScValTypeScvU64:
		return fmt.Sprintf("%d", val.MustU64())
	case xdr.ScValTypeScvI64:
		return fmt.Sprintf("%d", val.MustI64())
	case xdr.ScValTypeScvBool:
		if val.MustB() {
			return "true"
		}
		return "false"
	case xdr.ScValTypeScvAddress:
		addr := val.MustAddress()
		str, _ := addr.String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	default:
		return fmt.Sprintf("<%s>", val.Type.String())
	}
}
