package format

import (
	"strings"

	"github.com/stellar/go/amount"
)

// StroopsToXLM converts stroops (smallest unit) to an XLM display string.
// 1 XLM = 10,000,000 stroops. Trailing zeros are stripped, so 10000000
// renders as "1" and 100 renders as "0.00001".
func StroopsToXLM(stroops int64) string {
	s := amount.StringFromInt64(stroops)

	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// TruncateHash shortens a hash or address to "start...end" for display.
// Inputs too short to benefit from truncation are returned unchanged.
func TruncateHash(h string, start, end int) string {
	if len(h) <= start+end+3 {
		return h
	}
	return h[:start] + "..." + h[len(h)-end:]
}
