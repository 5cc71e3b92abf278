package derive

import (
	"math"
	"strconv"

	hProtocol "github.com/stellar/go/protocols/horizon"
)

// TradeStats24h aggregates hourly trade buckets into a 24h market summary.
// Nil pointer fields mean "no trades in the window" and must render as
// absent, never as a zero or infinity sentinel.
type TradeStats24h struct {
	Volume24h      float64  `json:"volume_24h"`
	High24h        *float64 `json:"high_24h"`
	Low24h         *float64 `json:"low_24h"`
	Open24h        *float64 `json:"open_24h"`
	Close24h       *float64 `json:"close_24h"`
	PriceChange24h float64  `json:"price_change_24h"`
	TradeCount     int64    `json:"trade_count"`
}

// ComputeTradeStats folds a sequence of hourly trade-aggregation buckets
// (oldest first) into 24h statistics. An empty sequence yields zero volume,
// nil extremes and a 0 price change.
func ComputeTradeStats(buckets []hProtocol.TradeAggregation) TradeStats24h {
	var stats TradeStats24h
	if len(buckets) == 0 {
		return stats
	}

	high := math.Inf(-1)
	low := math.Inf(1)

	for _, b := range buckets {
		stats.Volume24h += parseFloat(b.BaseVolume)
		stats.TradeCount += b.TradeCount

		if h := parseFloat(b.High); h > high {
			high = h
		}
		if l := parseFloat(b.Low); l < low {
			low = l
		}
	}

	if !math.IsInf(high, -1) {
		stats.High24h = &high
	}
	if !math.IsInf(low, 1) {
		stats.Low24h = &low
	}

	open := parseFloat(buckets[0].Open)
	closePrice := parseFloat(buckets[len(buckets)-1].Close)
	stats.Open24h = &open
	stats.Close24h = &closePrice

	// Guard the division: a zero or absent open means "no change"
	if open != 0 {
		stats.PriceChange24h = (closePrice - open) / open * 100
	}

	return stats
}

// OrderbookStats is the derived spread/mid-price of an orderbook. Both
// fields are nil unless a best bid and best ask are present.
type OrderbookStats struct {
	BestBid  *float64 `json:"best_bid"`
	BestAsk  *float64 `json:"best_ask"`
	MidPrice *float64 `json:"mid_price"`
	Spread   *float64 `json:"spread_pct"`
}

// ComputeOrderbookStats derives mid-price and relative spread from the top
// of the book.
func ComputeOrderbookStats(book hProtocol.OrderBookSummary) OrderbookStats {
	var stats OrderbookStats

	if len(book.Bids) > 0 {
		bid := parseFloat(book.Bids[0].Price)
		stats.BestBid = &bid
	}
	if len(book.Asks) > 0 {
		ask := parseFloat(book.Asks[0].Price)
		stats.BestAsk = &ask
	}

	if stats.BestBid != nil && stats.BestAsk != nil && *stats.BestAsk != 0 {
		mid := (*stats.BestBid + *stats.BestAsk) / 2
		spread := (*stats.BestAsk - *stats.BestBid) / *stats.BestAsk * 100
		stats.MidPrice = &mid
		stats.Spread = &spread
	}

	return stats
}

// TPS computes transactions-per-second between two consecutive ledger
// observations, rounded to two decimals. The second return is false when
// no valid point can be emitted: duplicate delivery (same sequence) or a
// non-positive time delta from out-of-order arrival.
func TPS(prevSeq, curSeq uint32, prevClosed, curClosed int64, successfulTxs int32) (float64, bool) {
	if curSeq == prevSeq {
		return 0, false
	}
	delta := curClosed - prevClosed
	if delta <= 0 {
		return 0, false
	}
	tps := float64(successfulTxs) / float64(delta)
	return math.Round(tps*100) / 100, true
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
