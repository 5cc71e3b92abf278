package format

import (
	"strings"

	"github.com/stellar/go/strkey"
)

// EntityType classifies what a free-text search query most likely refers to.
type EntityType string

const (
	EntityTransaction EntityType = "transaction"
	EntityAccount     EntityType = "account"
	EntityContract    EntityType = "contract"
	EntityLedger      EntityType = "ledger"
	EntityAsset       EntityType = "asset"
	EntityUnknown     EntityType = "unknown"
)

// DetectEntityType classifies a search query by shape. The checks run in a
// fixed precedence order because some inputs could satisfy more than one
// rule; the first match wins.
//
//	64 hex chars            -> transaction hash
//	G... (56, base32)       -> account
//	C... (56, valid strkey) -> contract
//	all digits              -> ledger sequence
//	CODE-GISSUER            -> asset
//
// Account classification is by shape only, not checksum: a mistyped key
// should still route to the account resolver, whose strict validation
// produces a useful error instead of a generic "unknown".
func DetectEntityType(query string) EntityType {
	q := strings.TrimSpace(query)
	if q == "" {
		return EntityUnknown
	}

	if len(q) == 64 && isHex(q) {
		return EntityTransaction
	}

	if len(q) == 56 && q[0] == 'G' && isBase32(q) {
		return EntityAccount
	}

	if len(q) == 56 && q[0] == 'C' {
		if _, err := strkey.Decode(strkey.VersionByteContract, q); err == nil {
			return EntityContract
		}
	}

	if isDigits(q) {
		return EntityLedger
	}

	// Asset references look like "USDC-GA5Z..." with a 1-12 char code.
	if parts := strings.Split(q, "-"); len(parts) == 2 {
		code, issuer := parts[0], parts[1]
		if len(code) >= 1 && len(code) <= 12 && strings.HasPrefix(issuer, "G") {
			return EntityAsset
		}
	}

	return EntityUnknown
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}

// isBase32 reports whether s uses only the RFC 4648 base32 alphabet that
// strkey addresses are written in.
func isBase32(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '2' && c <= '7':
		default:
			return false
		}
	}
	return len(s) > 0
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ValidAccountID reports whether s is a well-formed account public key.
func ValidAccountID(s string) bool {
	return len(s) == 56 && strkey.IsValidEd25519PublicKey(s)
}

// ValidContractID reports whether s is a well-formed contract address.
func ValidContractID(s string) bool {
	if len(s) != 56 || s[0] != 'C' {
		return false
	}
	_, err := strkey.Decode(strkey.VersionByteContract, s)
	return err == nil
}
